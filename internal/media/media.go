// Package media models the camera the scan simulator acquires.
//
// The server never touches a physical camera. The browser runs getUserMedia,
// reports the outcome, and pushes frames; a Relay turns that into a Device the
// scan state machine can acquire, capture from, and release.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoFrame          = errors.New("no frame available")
	ErrStreamStopped    = errors.New("stream stopped")
	ErrFrameTooLarge    = errors.New("frame dimensions exceed camera constraints")
)

// DefaultJPEGQuality matches a 0.8 canvas export.
const DefaultJPEGQuality = 80

type Constraints struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FacingMode string `json:"facing_mode"`
}

func DefaultConstraints() Constraints {
	return Constraints{Width: 640, Height: 480, FacingMode: "user"}
}

type Device interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired camera handle. Stop releases every track and is safe
// to call more than once.
type Stream interface {
	CaptureJPEG(quality int) ([]byte, error)
	Active() bool
	Stop()
}

// DataURL inlines a JPEG frame for the vision request.
func DataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}

// Relay is a Device backed by the browser. The browser reports its permission
// decision with Decide and feeds frames with Push.
type Relay struct {
	mu      sync.Mutex
	granted bool
	decided bool
	stream  *relayStream
}

func NewRelay() *Relay {
	return &Relay{}
}

// Decide records the outcome of the browser's camera prompt.
func (r *Relay) Decide(granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted = granted
	r.decided = true
}

func (r *Relay) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.decided || !r.granted {
		return nil, ErrPermissionDenied
	}
	// Permission is consumed by acquisition; a later request needs a new prompt.
	r.decided = false
	s := &relayStream{constraints: c, active: true}
	r.stream = s
	return s, nil
}

// Push decodes a JPEG or PNG frame and hands it to the live stream. The
// header is checked against the stream constraints before any pixels are
// decoded.
func (r *Relay) Push(frame []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	r.mu.Lock()
	s := r.stream
	r.mu.Unlock()
	if s == nil {
		return ErrStreamStopped
	}
	if !s.fits(cfg.Width, cfg.Height) {
		return fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return s.push(img)
}

// maxFrameScale bounds accepted frames to this many times the requested
// pixel count.
const maxFrameScale = 4

type relayStream struct {
	constraints Constraints

	mu     sync.Mutex
	active bool
	latest image.Image
}

func (s *relayStream) fits(width, height int) bool {
	c := s.constraints
	if c.Width <= 0 || c.Height <= 0 {
		c = DefaultConstraints()
	}
	maxSide := maxFrameScale * max(c.Width, c.Height)
	if width <= 0 || height <= 0 || width > maxSide || height > maxSide {
		return false
	}
	return width*height <= maxFrameScale*c.Width*c.Height
}

func (s *relayStream) push(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrStreamStopped
	}
	s.latest = img
	return nil
}

func (s *relayStream) CaptureJPEG(quality int) ([]byte, error) {
	s.mu.Lock()
	img, active := s.latest, s.active
	s.mu.Unlock()
	if !active {
		return nil, ErrStreamStopped
	}
	if img == nil {
		return nil, ErrNoFrame
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *relayStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *relayStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.latest = nil
}
