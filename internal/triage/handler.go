package triage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthguard-ai/internal/platform/httpx"
	"healthguard-ai/internal/session"
)

const maxUploadMemory = 10 << 20

// ReportRenderer turns an assessment into a downloadable PDF.
type ReportRenderer interface {
	RenderAssessment(ctx context.Context, a Assessment) ([]byte, error)
}

type Handler struct {
	sessions  *session.Registry[*Conversation]
	responder Responder
	publisher Publisher
	reports   ReportRenderer
	timing    Timing
	logger    *zap.Logger
}

func NewHandler(sessions *session.Registry[*Conversation], responder Responder, publisher Publisher, reports ReportRenderer, timing Timing, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		responder: responder,
		publisher: publisher,
		reports:   reports,
		timing:    timing,
		logger:    logger,
	}
}

type SubmitRequest struct {
	Text string `json:"text"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	_, c := h.sessions.Create(func(id uuid.UUID) *Conversation {
		return NewConversation(id, h.responder, h.publisher, h.timing, h.logger)
	})
	httpx.WriteJSON(w, http.StatusCreated, c.Snapshot())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}
	if err := h.sessions.Delete(id); err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Attach accepts one or more "file" parts. Contents are discarded once the
// display metadata is computed.
func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "Missing file")
		return
	}

	added := make([]Attachment, 0, len(files))
	for _, fh := range files {
		a, err := c.Attach(fh.Filename, fh.Header.Get("Content-Type"), fh.Size)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		added = append(added, a)
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"added":   added,
		"pending": c.Snapshot().Pending,
	})
}

func (h *Handler) Detach(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid attachment index")
		return
	}
	if err := c.Detach(index); err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"pending": c.Snapshot().Pending})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	entry, err := c.Submit(req.Text)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, entry)
}

func (h *Handler) ToggleRecording(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	recording, err := c.ToggleRecording()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"recording": recording})
}

func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	a, ok := c.Assessment()
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "No assessment yet")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) AssessmentReport(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	a, ok := c.Assessment()
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "No assessment yet")
		return
	}
	pdf, err := h.reports.RenderAssessment(r.Context(), a)
	if err != nil {
		h.logger.Error("Failed to render assessment report", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "Report generation failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="assessment_%s.pdf"`, c.ID()))
	w.Write(pdf)
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*Conversation, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid session ID")
		return nil, false
	}
	c, err := h.sessions.Get(id)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return c, true
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptySubmission), errors.Is(err, ErrAttachmentIndex):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrClosed):
		httpx.WriteError(w, http.StatusGone, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/triage/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.DeleteSession)
		r.Post("/{id}/attachments", h.Attach)
		r.Delete("/{id}/attachments/{index}", h.Detach)
		r.Post("/{id}/messages", h.Submit)
		r.Post("/{id}/recording", h.ToggleRecording)
		r.Get("/{id}/assessment", h.GetAssessment)
		r.Get("/{id}/assessment/report", h.AssessmentReport)
	})
}
