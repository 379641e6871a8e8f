package domain

import "time"

// Session is a point-in-time copy of a registry entry. It carries metadata
// only; no translated or source text is ever attached to it.
type Session struct {
	ID        string
	FromLang  string
	ToLang    string
	CreatedAt time.Time
	Active    bool
	EndedAt   *time.Time
}

// DurationAt returns the session length measured against now, or against the
// end time once the session has ended.
func (s Session) DurationAt(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	d := end.Sub(s.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

// ShortID truncates a session id for logging.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
