package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthguard-ai/internal/media"
)

var (
	ErrPermissionRequired = errors.New("camera permission required before scanning")
	ErrScanInProgress     = errors.New("scan in progress")
)

// Event names published on the scan topic.
const (
	EventState       = "state"
	EventDescription = "description"
	EventVitals      = "vitals"
)

// Describer turns a frame (JPEG data URL) into a short textual description.
type Describer interface {
	Describe(ctx context.Context, imageDataURL string) (string, error)
}

// VitalsEstimator stands in for the inference engine and must not fail.
type VitalsEstimator interface {
	Estimate(analysis string) Vitals
}

type Publisher interface {
	Publish(topic, event string, payload any)
}

type Timing struct {
	AnalysisDelay   time.Duration
	CaptureInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{AnalysisDelay: 4 * time.Second, CaptureInterval: 5 * time.Second}
}

func Topic(id uuid.UUID) string {
	return "scan:" + id.String()
}

// Scanner is the scan state machine for one session. It owns the camera
// stream from permission grant until Stop, and every scan run is tagged with a
// generation so work finishing after Stop is dropped.
type Scanner struct {
	id          uuid.UUID
	topic       string
	device      media.Device
	constraints media.Constraints
	describer   Describer
	estimator   VitalsEstimator
	publisher   Publisher
	timing      Timing
	logger      *zap.Logger
	now         func() time.Time

	mu          sync.Mutex
	state       State
	stream      media.Stream
	description string
	vitals      *Vitals
	generation  uint64
	cancelCycle context.CancelFunc
	cycleDone   chan struct{}
	completion  *time.Timer
}

func NewScanner(id uuid.UUID, device media.Device, describer Describer, estimator VitalsEstimator, publisher Publisher, timing Timing, logger *zap.Logger) *Scanner {
	return &Scanner{
		id:          id,
		topic:       Topic(id),
		device:      device,
		constraints: media.DefaultConstraints(),
		describer:   describer,
		estimator:   estimator,
		publisher:   publisher,
		timing:      timing,
		logger:      logger.With(zap.String("scan_id", id.String())),
		now:         time.Now,
		state:       StateIdle,
	}
}

func (s *Scanner) ID() uuid.UUID { return s.id }

// RequestPermission acquires the camera. Success moves to granted, any
// failure moves to denied and releases nothing further; the caller may retry.
func (s *Scanner) RequestPermission(ctx context.Context) (Status, error) {
	s.mu.Lock()
	if s.state.Scanning() {
		s.mu.Unlock()
		return s.Status(), ErrScanInProgress
	}
	s.mu.Unlock()

	stream, err := s.device.Acquire(ctx, s.constraints)

	s.mu.Lock()
	if s.state.Scanning() {
		s.mu.Unlock()
		if stream != nil {
			stream.Stop()
		}
		return s.Status(), ErrScanInProgress
	}
	s.releaseStreamLocked()
	if err != nil {
		s.state = StateDenied
		s.mu.Unlock()
		s.logger.Warn("Camera permission denied", zap.Error(err))
		s.publishState()
		if !errors.Is(err, media.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", media.ErrPermissionDenied, err)
		}
		return s.Status(), err
	}
	s.stream = stream
	s.state = StateGranted
	s.mu.Unlock()

	s.logger.Info("Camera permission granted")
	s.publishState()
	return s.Status(), nil
}

// Start begins a scan run: the repeating capture-and-describe cycle plus the
// one-shot completion that produces the vitals snapshot.
func (s *Scanner) Start() (Status, error) {
	s.mu.Lock()
	switch {
	case s.state.Scanning():
		s.mu.Unlock()
		return s.Status(), ErrScanInProgress
	case s.state != StateGranted:
		s.mu.Unlock()
		return s.Status(), ErrPermissionRequired
	}

	s.generation++
	gen := s.generation
	stream := s.stream
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancelCycle = cancel
	s.cycleDone = done
	s.state = StateAnalyzing
	s.description = ""
	s.vitals = nil

	go s.runCaptureCycle(ctx, gen, stream, done)
	s.completion = time.AfterFunc(s.timing.AnalysisDelay, func() { s.complete(ctx, gen, stream) })
	s.mu.Unlock()

	s.logger.Info("Scan started", zap.Uint64("generation", gen))
	s.publishState()
	return s.Status(), nil
}

func (s *Scanner) runCaptureCycle(ctx context.Context, gen uint64, stream media.Stream, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.timing.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := stream.CaptureJPEG(media.DefaultJPEGQuality)
		if err != nil {
			s.logger.Debug("Skipping live analysis tick", zap.Error(err))
			continue
		}
		desc, err := s.describer.Describe(ctx, media.DataURL(frame))
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Live frame analysis failed", zap.Error(err))
			}
			continue
		}
		if strings.TrimSpace(desc) == "" {
			continue
		}

		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		s.description = desc
		s.mu.Unlock()
		s.publisher.Publish(s.topic, EventDescription, desc)
	}
}

func (s *Scanner) complete(ctx context.Context, gen uint64, stream media.Stream) {
	s.mu.Lock()
	current := s.generation == gen && s.state == StateAnalyzing
	s.mu.Unlock()
	if !current {
		return
	}

	v := s.estimator.Estimate(s.finalAnalysis(ctx, stream))
	v.CapturedAt = s.now()

	s.mu.Lock()
	if s.generation != gen || s.state != StateAnalyzing {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale scan result", zap.Uint64("generation", gen))
		return
	}
	s.vitals = &v
	s.state = StateResulted
	s.completion = nil
	s.mu.Unlock()

	s.logger.Info("Scan analysis complete",
		zap.Uint64("generation", gen),
		zap.String("overall_health", v.OverallHealth),
		zap.Int("confidence", v.Confidence),
	)
	s.publisher.Publish(s.topic, EventVitals, v)
	s.publishState()
}

// finalAnalysis never fails: every error degrades to a fixed string.
func (s *Scanner) finalAnalysis(ctx context.Context, stream media.Stream) string {
	frame, err := stream.CaptureJPEG(media.DefaultJPEGQuality)
	if err != nil {
		return NoFrameAnalysis
	}
	desc, err := s.describer.Describe(ctx, media.DataURL(frame))
	if err != nil {
		s.logger.Warn("Frame analysis failed, using fallback", zap.Error(err))
		return FallbackAnalysis
	}
	if strings.TrimSpace(desc) == "" {
		return FallbackAnalysis
	}
	return desc
}

// Stop returns to idle from any state. The capture cycle has exited, the
// completion timer is cancelled and the camera is released when it returns.
func (s *Scanner) Stop() Status {
	s.mu.Lock()
	s.generation++
	if s.completion != nil {
		s.completion.Stop()
		s.completion = nil
	}
	if s.cancelCycle != nil {
		s.cancelCycle()
		s.cancelCycle = nil
	}
	done := s.cycleDone
	s.cycleDone = nil
	s.releaseStreamLocked()
	s.state = StateIdle
	s.description = ""
	s.vitals = nil
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	s.logger.Info("Scan stopped")
	s.publishState()
	return s.Status()
}

func (s *Scanner) Close() {
	s.Stop()
}

func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ID:          s.id,
		State:       s.state,
		Permission:  s.state.Permission(),
		Scanning:    s.state.Scanning(),
		Analyzing:   s.state == StateAnalyzing,
		Description: s.description,
		Generation:  s.generation,
	}
	if s.vitals != nil {
		v := *s.vitals
		st.Vitals = &v
	}
	return st
}

// CameraActive reports whether the session still holds a live stream.
func (s *Scanner) CameraActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil && s.stream.Active()
}

// CycleRunning reports whether the repeating capture cycle is scheduled.
func (s *Scanner) CycleRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelCycle != nil
}

func (s *Scanner) releaseStreamLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
}

func (s *Scanner) publishState() {
	s.publisher.Publish(s.topic, EventState, s.Status())
}
