package intake

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthguard-ai/internal/platform/httpx"
	"healthguard-ai/internal/session"
)

type Handler struct {
	sessions    *session.Registry[*Form]
	publisher   Publisher
	ackDuration time.Duration
	logger      *zap.Logger
}

func NewHandler(sessions *session.Registry[*Form], publisher Publisher, ackDuration time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:    sessions,
		publisher:   publisher,
		ackDuration: ackDuration,
		logger:      logger,
	}
}

type SubmitRequest struct {
	Email string `json:"email"`
}

func (h *Handler) GetLanding(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, LandingContent)
}

func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	_, f := h.sessions.Create(func(id uuid.UUID) *Form {
		return NewForm(id, h.publisher, h.ackDuration, h.logger)
	})
	httpx.WriteJSON(w, http.StatusCreated, f.Status())
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	f, ok := h.form(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, f.Status())
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	f, ok := h.form(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	st, err := f.Submit(req.Email)
	switch {
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrEmailInvalid):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadySubmitted):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		httpx.WriteJSON(w, http.StatusOK, st)
	}
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) (*Form, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid form ID")
		return nil, false
	}
	f, err := h.sessions.Get(id)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return f, true
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/intake", func(r chi.Router) {
		r.Get("/landing", h.GetLanding)
		r.Post("/forms", h.CreateForm)
		r.Get("/forms/{id}", h.GetForm)
		r.Post("/forms/{id}/submit", h.Submit)
	})
}
