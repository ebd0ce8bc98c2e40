// Package session keeps the live, in-memory simulator sessions of the demo.
// Nothing here is persisted: a session lives until it is deleted, evicted for
// inactivity, or the process stops.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("session not found")

// Closer releases whatever a session holds (timers, camera handles).
type Closer interface {
	Close()
}

type entry[T Closer] struct {
	value    T
	lastSeen time.Time
}

type Registry[T Closer] struct {
	name    string
	idleTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry[T]
}

func NewRegistry[T Closer](name string, idleTTL time.Duration, logger *zap.Logger) *Registry[T] {
	return &Registry[T]{
		name:     name,
		idleTTL:  idleTTL,
		logger:   logger.With(zap.String("registry", name)),
		now:      time.Now,
		sessions: make(map[uuid.UUID]*entry[T]),
	}
}

// Create builds a new session value with a fresh id.
func (r *Registry[T]) Create(build func(id uuid.UUID) T) (uuid.UUID, T) {
	id := uuid.New()
	v := build(id)

	r.mu.Lock()
	r.sessions[id] = &entry[T]{value: v, lastSeen: r.now()}
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("Session created", zap.String("session_id", id.String()), zap.Int("live", count))
	return id, v
}

// Get returns the session and marks it as recently used.
func (r *Registry[T]) Get(id uuid.UUID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	e.lastSeen = r.now()
	return e.value, nil
}

func (r *Registry[T]) Delete(id uuid.UUID) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.value.Close()
	r.logger.Debug("Session deleted", zap.String("session_id", id.String()))
	return nil
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle closes and removes every session not used within the idle TTL.
func (r *Registry[T]) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []T
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.value)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, v := range stale {
		v.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("Evicted idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// RunHousekeeping evicts idle sessions every interval until ctx is done.
func (r *Registry[T]) RunHousekeeping(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

// CloseAll releases every session; used at shutdown.
func (r *Registry[T]) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[uuid.UUID]*entry[T])
	r.mu.Unlock()

	for _, e := range all {
		e.value.Close()
	}
}
