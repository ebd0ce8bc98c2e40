package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthguard-ai/internal/session"
)

type fakeReports struct{}

func (fakeReports) RenderAssessment(ctx context.Context, a Assessment) ([]byte, error) {
	return []byte("%PDF-1.4 " + string(a.RiskLevel)), nil
}

func newTestRouter(t *testing.T) (http.Handler, *session.Registry[*Conversation]) {
	t.Helper()
	sessions := session.NewRegistry[*Conversation]("triage", time.Minute, zap.NewNop())
	t.Cleanup(sessions.CloseAll)
	h := NewHandler(sessions, &fakeResponder{}, &recordingPublisher{}, fakeReports{}, fastTiming, zap.NewNop())
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return r, sessions
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, h http.Handler) State {
	t.Helper()
	w := do(t, h, http.MethodPost, "/triage/sessions/", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var s State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func TestHandler_SubmitFlow(t *testing.T) {
	h, _ := newTestRouter(t)
	s := createSession(t, h)
	require.Len(t, s.Entries, 1)

	w := do(t, h, http.MethodPost, "/triage/sessions/"+s.ID+"/messages", []byte(`{"text":"   "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/triage/sessions/"+s.ID+"/messages", []byte(`{"text":"chest pain"}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)
	var entry Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, RoleUser, entry.Role)

	w = do(t, h, http.MethodGet, "/triage/sessions/"+s.ID+"/assessment", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Eventually(t, func() bool {
		return do(t, h, http.MethodGet, "/triage/sessions/"+s.ID+"/assessment", nil, "").Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	w = do(t, h, http.MethodGet, "/triage/sessions/"+s.ID+"/assessment/report", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestHandler_AttachAndDetach(t *testing.T) {
	h, _ := newTestRouter(t)
	s := createSession(t, h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct{ name, ctype, body string }{
		{"xray.jpg", "image/jpeg", strings.Repeat("x", 3072)},
		{"notes.txt", "text/plain", "hello"},
	} {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", f.ctype)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := do(t, h, http.MethodPost, "/triage/sessions/"+s.ID+"/attachments", buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Added   []Attachment `json:"added"`
		Pending []Attachment `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, Attachment{Name: "xray.jpg", Kind: KindImage, Size: "3.0 KB"}, resp.Added[0])
	assert.Equal(t, KindDocument, resp.Added[1].Kind)
	assert.Len(t, resp.Pending, 2)

	w = do(t, h, http.MethodDelete, "/triage/sessions/"+s.ID+"/attachments/0", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "notes.txt")
	assert.NotContains(t, w.Body.String(), "xray.jpg")

	w = do(t, h, http.MethodDelete, "/triage/sessions/"+s.ID+"/attachments/5", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_UnknownAndInvalidSession(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/triage/sessions/not-a-uuid", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/triage/sessions/6f1c7a56-1b7e-4d39-9d55-3f0a5b7f2c11", nil, "").Code)
}

func TestHandler_DeleteSessionClosesConversation(t *testing.T) {
	h, sessions := newTestRouter(t)
	s := createSession(t, h)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/triage/sessions/"+s.ID, nil, "").Code)
	assert.Equal(t, 0, sessions.Len())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/triage/sessions/"+s.ID, nil, "").Code)
}
