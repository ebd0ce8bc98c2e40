package triage

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptySubmission = errors.New("nothing to send: message is blank and no files are attached")
	ErrAttachmentIndex = errors.New("attachment index out of range")
	ErrClosed          = errors.New("conversation closed")
)

// Event names published on the conversation topic.
const (
	EventEntry       = "entry"
	EventComposing   = "composing"
	EventAssessment  = "assessment"
	EventAttachments = "attachments"
	EventRecording   = "recording"
)

// Responder stands in for the inference engine. Implementations must not
// fail; the conversation has no error path for replies.
type Responder interface {
	Reply(text string, attachmentCount int) string
	Assess(text string) Assessment
}

type Publisher interface {
	Publish(topic, event string, payload any)
}

type Timing struct {
	ReplyDelay      time.Duration
	AssessmentDelay time.Duration
}

func DefaultTiming() Timing {
	return Timing{ReplyDelay: 2 * time.Second, AssessmentDelay: 3 * time.Second}
}

func Topic(id uuid.UUID) string {
	return "triage:" + id.String()
}

// Conversation is one chat session. All state changes, including the delayed
// assistant reply and assessment, happen under mu; events are published after
// the lock is released.
type Conversation struct {
	id        uuid.UUID
	topic     string
	responder Responder
	publisher Publisher
	timing    Timing
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	entries    []Entry
	pending    []Attachment
	composing  int
	recording  bool
	assessment *Assessment
	timers     map[*time.Timer]struct{}
	closed     bool
}

func NewConversation(id uuid.UUID, responder Responder, publisher Publisher, timing Timing, logger *zap.Logger) *Conversation {
	c := &Conversation{
		id:        id,
		topic:     Topic(id),
		responder: responder,
		publisher: publisher,
		timing:    timing,
		logger:    logger.With(zap.String("conversation_id", id.String())),
		now:       time.Now,
		timers:    make(map[*time.Timer]struct{}),
	}
	c.entries = append(c.entries, Entry{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   Greeting,
		Timestamp: c.now(),
	})
	return c
}

func (c *Conversation) ID() uuid.UUID { return c.id }

// Attach adds a file to the pending list. Only display metadata is kept.
func (c *Conversation) Attach(name, mediaType string, size int64) (Attachment, error) {
	a := NewAttachment(name, mediaType, size)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Attachment{}, ErrClosed
	}
	c.pending = append(c.pending, a)
	pending := cloneAttachments(c.pending)
	c.mu.Unlock()

	c.publisher.Publish(c.topic, EventAttachments, pending)
	return a, nil
}

func (c *Conversation) Detach(index int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if index < 0 || index >= len(c.pending) {
		c.mu.Unlock()
		return ErrAttachmentIndex
	}
	c.pending = append(c.pending[:index:index], c.pending[index+1:]...)
	pending := cloneAttachments(c.pending)
	c.mu.Unlock()

	c.publisher.Publish(c.topic, EventAttachments, pending)
	return nil
}

// Submit appends the user entry, clears the input and schedules the reply.
// A blank message with no pending attachments changes nothing.
func (c *Conversation) Submit(text string) (Entry, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Entry{}, ErrClosed
	}
	if strings.TrimSpace(text) == "" && len(c.pending) == 0 {
		c.mu.Unlock()
		return Entry{}, ErrEmptySubmission
	}

	entry := Entry{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Content:     text,
		Timestamp:   c.now(),
		Attachments: c.pending,
	}
	attached := len(c.pending)
	c.entries = append(c.entries, entry)
	c.pending = nil
	c.composing++
	c.afterLocked(c.timing.ReplyDelay, func() { c.deliverReply(text, attached) })
	c.mu.Unlock()

	c.logger.Debug("User message submitted", zap.Int("attachments", attached))
	c.publisher.Publish(c.topic, EventEntry, entry)
	c.publisher.Publish(c.topic, EventAttachments, []Attachment{})
	c.publisher.Publish(c.topic, EventComposing, true)
	return entry, nil
}

func (c *Conversation) deliverReply(text string, attached int) {
	content := c.responder.Reply(text, attached)
	if attached > 0 {
		content += attachmentNote(attached)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: c.now(),
	}
	c.entries = append(c.entries, entry)
	c.composing--
	composing := c.composing > 0
	assess := MentionsSymptoms(text)
	if assess {
		c.afterLocked(c.timing.AssessmentDelay, func() { c.deliverAssessment(text) })
	}
	c.mu.Unlock()

	c.publisher.Publish(c.topic, EventEntry, entry)
	c.publisher.Publish(c.topic, EventComposing, composing)
	if assess {
		c.logger.Debug("Symptom keywords found, assessment scheduled")
	}
}

func (c *Conversation) deliverAssessment(text string) {
	a := c.responder.Assess(text)
	a.CreatedAt = c.now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.assessment = &a
	c.mu.Unlock()

	c.logger.Info("Assessment generated", zap.String("risk_level", string(a.RiskLevel)), zap.Int("confidence", a.Confidence))
	c.publisher.Publish(c.topic, EventAssessment, a)
}

// ToggleRecording flips the microphone flag. No audio is captured.
func (c *Conversation) ToggleRecording() (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.recording = !c.recording
	recording := c.recording
	c.mu.Unlock()

	c.publisher.Publish(c.topic, EventRecording, recording)
	return recording, nil
}

func (c *Conversation) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		ID:        c.id.String(),
		Entries:   append([]Entry(nil), c.entries...),
		Pending:   cloneAttachments(c.pending),
		Composing: c.composing > 0,
		Recording: c.recording,
	}
	if c.assessment != nil {
		a := *c.assessment
		s.Assessment = &a
	}
	return s
}

// Assessment returns the latest assessment, if any.
func (c *Conversation) Assessment() (Assessment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assessment == nil {
		return Assessment{}, false
	}
	return *c.assessment, true
}

// Close cancels pending replies and assessments.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

// afterLocked runs f after d unless the conversation is closed first.
// c.mu must be held.
func (c *Conversation) afterLocked(d time.Duration, f func()) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.mu.Lock()
		delete(c.timers, t)
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			f()
		}
	})
	c.timers[t] = struct{}{}
}

func cloneAttachments(in []Attachment) []Attachment {
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
