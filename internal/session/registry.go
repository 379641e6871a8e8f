// Package session keeps an in-memory table of translation sessions. Only
// metadata is stored: ids, language pair and timestamps.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"translation-relay/internal/domain"
)

const DefaultMaxAge = 120 * time.Minute

type entry struct {
	fromLang  string
	toLang    string
	createdAt time.Time
	active    bool
	endedAt   *time.Time
}

func (e *entry) snapshot(id string) domain.Session {
	s := domain.Session{
		ID:        id,
		FromLang:  e.fromLang,
		ToLang:    e.toLang,
		CreatedAt: e.createdAt,
		Active:    e.active,
	}
	if e.endedAt != nil {
		t := *e.endedAt
		s.EndedAt = &t
	}
	return s
}

// Registry is safe for concurrent use by many connections. A single mutex
// guards the table.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Registry)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts a new active session, replacing any existing entry with the
// same id.
func (r *Registry) Create(id, fromLang, toLang string) domain.Session {
	e := &entry{
		fromLang:  fromLang,
		toLang:    toLang,
		createdAt: r.now(),
		active:    true,
	}
	r.mu.Lock()
	_, replaced := r.sessions[id]
	r.sessions[id] = e
	s := e.snapshot(id)
	r.mu.Unlock()

	r.logger.Info("session created", "session", domain.ShortID(id), "from", fromLang, "to", toLang, "replaced", replaced)
	return s
}

// IsActive is false for unknown and ended sessions.
func (r *Registry) IsActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	return ok && e.active
}

// End marks the session inactive and stamps its end time. Unknown ids and
// already ended sessions are left untouched.
func (r *Registry) End(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || !e.active {
		r.mu.Unlock()
		return
	}
	now := r.now()
	e.active = false
	e.endedAt = &now
	d := e.snapshot(id).DurationAt(now)
	r.mu.Unlock()

	r.logger.Info("session ended", "session", domain.ShortID(id), "duration_seconds", int(d.Seconds()))
}

// Duration is measured up to now for active sessions and frozen at the end
// time for ended ones. Unknown ids report zero.
func (r *Registry) Duration(id string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return 0
	}
	return e.snapshot(id).DurationAt(r.now())
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return e.snapshot(id), true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CleanupExpired removes ended sessions created more than maxAge ago and
// returns how many were removed. Active sessions are never removed. A zero
// maxAge removes every ended session; a negative one means DefaultMaxAge.
func (r *Registry) CleanupExpired(maxAge time.Duration) int {
	if maxAge < 0 {
		maxAge = DefaultMaxAge
	}
	r.mu.Lock()
	now := r.now()
	removed := 0
	for id, e := range r.sessions {
		if !e.active && now.Sub(e.createdAt) > maxAge {
			delete(r.sessions, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.logger.Info("cleaned up expired sessions", "count", removed)
	}
	return removed
}

// Sweep runs CleanupExpired every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CleanupExpired(maxAge)
		}
	}
}
