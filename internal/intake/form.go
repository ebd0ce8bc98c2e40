package intake

import (
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email address is not valid")
	ErrAlreadySubmitted = errors.New("request already sent")
)

const EventSubmitted = "submitted"

const DefaultAckDuration = 3 * time.Second

type Publisher interface {
	Publish(topic, event string, payload any)
}

func Topic(id uuid.UUID) string {
	return "intake:" + id.String()
}

// Form is the early-access request form. A valid submit raises the
// acknowledgement flag for ackDuration; nothing is sent anywhere.
type Form struct {
	id          uuid.UUID
	publisher   Publisher
	ackDuration time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	submitted bool
	timer     *time.Timer
	closed    bool
}

func NewForm(id uuid.UUID, publisher Publisher, ackDuration time.Duration, logger *zap.Logger) *Form {
	return &Form{
		id:          id,
		publisher:   publisher,
		ackDuration: ackDuration,
		logger:      logger,
	}
}

func (f *Form) ID() uuid.UUID { return f.id }

func (f *Form) Submit(email string) (Status, error) {
	if err := validateEmail(email); err != nil {
		return f.Status(), err
	}

	f.mu.Lock()
	if f.submitted {
		f.mu.Unlock()
		return f.Status(), ErrAlreadySubmitted
	}
	f.submitted = true
	if !f.closed {
		f.timer = time.AfterFunc(f.ackDuration, f.clear)
	}
	st := f.statusLocked()
	f.mu.Unlock()

	f.logger.Info("Demo access requested", zap.String("form_id", f.id.String()))
	f.publisher.Publish(Topic(f.id), EventSubmitted, st)
	return st, nil
}

func (f *Form) clear() {
	f.mu.Lock()
	if f.closed || !f.submitted {
		f.mu.Unlock()
		return
	}
	f.submitted = false
	f.timer = nil
	st := f.statusLocked()
	f.mu.Unlock()

	f.publisher.Publish(Topic(f.id), EventSubmitted, st)
}

func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusLocked()
}

func (f *Form) statusLocked() Status {
	st := Status{ID: f.id, Submitted: f.submitted}
	if f.submitted {
		st.Message = LandingContent.ThankYou
	}
	return st
}

func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// validateEmail accepts a bare address only, the way an email input field does.
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailInvalid
	}
	return nil
}
