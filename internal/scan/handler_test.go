package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthguard-ai/internal/session"
)

type fakeReports struct{}

func (fakeReports) RenderVitals(ctx context.Context, v Vitals) ([]byte, error) {
	return []byte("%PDF-1.4 vitals"), nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	sessions := session.NewRegistry[*Session]("scan", time.Minute, zap.NewNop())
	t.Cleanup(sessions.CloseAll)
	h := NewHandler(sessions, &fakeDescriber{fn: describeOK("Calm, alert expression.")}, &fakeEstimator{}, nopPublisher{}, fakeReports{}, fastTiming, zap.NewNop())
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return r
}

func call(t *testing.T, h http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, Status) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewReader(body)))
	var st Status
	if w.Header().Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(w.Body.Bytes(), &st)
	}
	return w, st
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestHandler_ScanLifecycle(t *testing.T) {
	h := newTestRouter(t)

	w, st := call(t, h, http.MethodPost, "/scan/sessions/", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/scan/sessions/" + st.ID.String()
	assert.Equal(t, StateIdle, st.State)

	w, _ = call(t, h, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, st = call(t, h, http.MethodPost, base+"/permission", []byte(`{"granted":false}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StateDenied, st.State)

	w, _ = call(t, h, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, st = call(t, h, http.MethodPost, base+"/permission", []byte(`{"granted":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StateGranted, st.State)

	w, _ = call(t, h, http.MethodPost, base+"/frames", testFrame(t))
	require.Equal(t, http.StatusAccepted, w.Code)

	w, _ = call(t, h, http.MethodGet, base+"/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, st = call(t, h, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, StateAnalyzing, st.State)

	require.Eventually(t, func() bool {
		_, st := call(t, h, http.MethodGet, base, nil)
		return st.State == StateResulted && st.Vitals != nil
	}, 2*time.Second, 10*time.Millisecond)
	_, st = call(t, h, http.MethodGet, base, nil)
	assert.Equal(t, "Calm, alert expression.", st.Vitals.AIAnalysis)

	w, _ = call(t, h, http.MethodGet, base+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w, st = call(t, h, http.MethodPost, base+"/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.Vitals)

	w, _ = call(t, h, http.MethodPost, base+"/frames", testFrame(t))
	assert.Equal(t, http.StatusConflict, w.Code, "camera released on stop")

	w, _ = call(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = call(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_FrameRejectsGarbage(t *testing.T) {
	h := newTestRouter(t)
	_, st := call(t, h, http.MethodPost, "/scan/sessions/", nil)
	base := "/scan/sessions/" + st.ID.String()
	call(t, h, http.MethodPost, base+"/permission", []byte(`{"granted":true}`))

	w, _ := call(t, h, http.MethodPost, base+"/frames", []byte("garbage"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_FrameRejectsOversizedImage(t *testing.T) {
	h := newTestRouter(t)
	_, st := call(t, h, http.MethodPost, "/scan/sessions/", nil)
	base := "/scan/sessions/" + st.ID.String()
	call(t, h, http.MethodPost, base+"/permission", []byte(`{"granted":true}`))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3000, 8))))
	w, _ := call(t, h, http.MethodPost, base+"/frames", buf.Bytes())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandler_InvalidSession(t *testing.T) {
	h := newTestRouter(t)
	w, _ := call(t, h, http.MethodPost, "/scan/sessions/nope/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
