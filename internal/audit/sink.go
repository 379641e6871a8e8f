// Package audit records session lifecycle events. Every event is logged
// locally; a durable store is written to on a best-effort basis.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"translation-relay/internal/domain"
)

const defaultWriteTimeout = 5 * time.Second

// Store persists audit events.
type Store interface {
	InsertEvent(ctx context.Context, ev domain.AuditEvent) error
}

// Opener connects to the durable store. It is called at most once per Sink.
// Returning a nil Store with a nil error means no store is configured.
type Opener func(ctx context.Context) (Store, error)

// Sink never reports failures to its callers.
type Sink struct {
	open         Opener
	logger       *slog.Logger
	writeTimeout time.Duration
	now          func() time.Time
	newID        func() string

	initOnce sync.Once
	store    Store

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

type Option func(*Sink)

// WithStore enables durable writes through the store returned by open.
func WithStore(open Opener) Option {
	return func(s *Sink) {
		s.open = open
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSink(opts ...Option) *Sink {
	s := &Sink{
		logger:       slog.Default(),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log writes the event to the local log synchronously, then hands it to the
// durable store in the background.
func (s *Sink) Log(ctx context.Context, kind, sessionID string, details map[string]any) {
	ev := domain.AuditEvent{
		ID:        s.newID(),
		Kind:      kind,
		SessionID: sessionID,
		Details:   details,
		Timestamp: s.now().UTC(),
	}
	s.logger.Info("audit",
		"event", ev.Kind,
		"session", domain.ShortID(ev.SessionID),
		"details", ev.Details,
	)

	if s.open == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	go s.persist(context.WithoutCancel(ctx), ev)
}

func (s *Sink) persist(ctx context.Context, ev domain.AuditEvent) {
	defer s.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("audit store write panicked", "event", ev.Kind, "panic", r)
		}
	}()

	store := s.ensureStore(ctx)
	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := store.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("audit store write failed", "event", ev.Kind, "session", domain.ShortID(ev.SessionID), "err", err)
	}
}

// ensureStore attempts the connection exactly once; a failed attempt leaves
// the sink in local-only mode for the rest of its life.
func (s *Sink) ensureStore(ctx context.Context) Store {
	s.initOnce.Do(func() {
		store, err := s.open(ctx)
		if err != nil {
			s.logger.Warn("audit store not available, audit logs local only", "err", err)
			return
		}
		if store == nil {
			return
		}
		s.store = store
		s.logger.Info("audit store connected")
	})
	return s.store
}

// Close stops accepting durable writes and waits for in-flight ones until
// ctx is done. Local logging keeps working after Close.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
