package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthguard-ai/internal/media"
	"healthguard-ai/internal/platform/httpx"
	"healthguard-ai/internal/session"
)

const maxFrameBytes = 5 << 20

// Session pairs a scanner with the browser-fed camera it acquires from.
type Session struct {
	Scanner *Scanner
	Relay   *media.Relay
}

func (s *Session) Close() {
	s.Scanner.Close()
}

// ReportRenderer turns a vitals snapshot into a downloadable PDF.
type ReportRenderer interface {
	RenderVitals(ctx context.Context, v Vitals) ([]byte, error)
}

type Handler struct {
	sessions  *session.Registry[*Session]
	describer Describer
	estimator VitalsEstimator
	publisher Publisher
	reports   ReportRenderer
	timing    Timing
	logger    *zap.Logger
}

func NewHandler(sessions *session.Registry[*Session], describer Describer, estimator VitalsEstimator, publisher Publisher, reports ReportRenderer, timing Timing, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		describer: describer,
		estimator: estimator,
		publisher: publisher,
		reports:   reports,
		timing:    timing,
		logger:    logger,
	}
}

type PermissionRequest struct {
	Granted bool `json:"granted"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	_, s := h.sessions.Create(func(id uuid.UUID) *Session {
		relay := media.NewRelay()
		return &Session{
			Scanner: NewScanner(id, relay, h.describer, h.estimator, h.publisher, h.timing, h.logger),
			Relay:   relay,
		}
	})
	httpx.WriteJSON(w, http.StatusCreated, s.Scanner.Status())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.Scanner.Status())
}

// DeleteSession tears the session down, releasing the camera.
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

// Permission receives the browser's getUserMedia outcome and requests the
// camera. A denial is a normal state, not a request error.
func (h *Handler) Permission(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.Relay.Decide(req.Granted)
	status, err := s.Scanner.RequestPermission(r.Context())
	if err != nil && !errors.Is(err, media.ErrPermissionDenied) {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, status)
}

// Frame accepts one JPEG or PNG camera frame as the raw request body.
func (h *Handler) Frame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Failed to read frame")
		return
	}
	if len(data) > maxFrameBytes {
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, "Frame too large")
		return
	}
	if err := s.Relay.Push(data); err != nil {
		if errors.Is(err, media.ErrStreamStopped) {
			httpx.WriteError(w, http.StatusConflict, "Camera not active")
			return
		}
		if errors.Is(err, media.ErrFrameTooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	status, err := s.Scanner.Start()
	if err != nil {
		h.writeErr(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, status)
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.Scanner.Stop())
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	status := s.Scanner.Status()
	if status.Vitals == nil {
		httpx.WriteError(w, http.StatusNotFound, "No scan results yet")
		return
	}
	pdf, err := h.reports.RenderVitals(r.Context(), *status.Vitals)
	if err != nil {
		h.logger.Error("Failed to render vitals report", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "Report generation failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vitals_%s.pdf"`, status.ID))
	w.Write(pdf)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid session ID")
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPermissionRequired), errors.Is(err, ErrScanInProgress):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/scan/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.DeleteSession)
		r.Post("/{id}/permission", h.Permission)
		r.Post("/{id}/frames", h.Frame)
		r.Post("/{id}/start", h.Start)
		r.Post("/{id}/stop", h.Stop)
		r.Get("/{id}/report", h.Report)
	})
}
