// Package relay implements the text translation protocol spoken over a
// WebSocket connection.
package relay

import (
	"encoding/json"
	"fmt"
)

// Client → server frame types.
const (
	TypeStartSession = "start_session"
	TypeTranslate    = "translate"
	TypeEndSession   = "end_session"
)

// Server → client frame types.
const (
	TypeSessionStarted = "session_started"
	TypeTranslation    = "translation"
	TypeError          = "error"
	TypeSessionEnded   = "session_ended"
)

// UnknownSessionID stands in when a translate frame arrives outside a session.
const UnknownSessionID = "unknown"

// translationFailedMessage is the only error text clients ever see.
const translationFailedMessage = "Translation failed, please repeat"

// Inbound is one client frame. Fields a frame type does not use are ignored.
type Inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`

	// hasSessionID is set when the frame carried session_id, even as "".
	hasSessionID bool
}

// sessionIDOr returns the frame's session id, or def when the frame has none.
// Ids are opaque and returned exactly as sent.
func (in Inbound) sessionIDOr(def string) string {
	if in.hasSessionID || in.SessionID != "" {
		return in.SessionID
	}
	return def
}

func knownType(t string) bool {
	switch t {
	case TypeStartSession, TypeTranslate, TypeEndSession:
		return true
	}
	return false
}

// decodeFrame parses one client frame. Frames whose type is missing, not a
// string or not one of the client types are reported as not known and are
// not decoded further. Known frames are decoded strictly.
func decodeFrame(data []byte) (Inbound, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Inbound{}, false, fmt.Errorf("relay: decode frame: %w", err)
	}
	var typ string
	if raw, ok := fields["type"]; !ok || json.Unmarshal(raw, &typ) != nil || !knownType(typ) {
		return Inbound{Type: typ}, false, nil
	}

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, false, fmt.Errorf("relay: decode %s frame: %w", typ, err)
	}
	if raw, ok := fields["session_id"]; ok && string(raw) != "null" {
		in.hasSessionID = true
	}
	return in, true, nil
}

// Outbound is one server frame.
type Outbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Original  string `json:"original,omitempty"`
	Text      string `json:"text,omitempty"`
	Message   string `json:"message,omitempty"`
}

func sessionStarted(id string) Outbound {
	return Outbound{Type: TypeSessionStarted, SessionID: id}
}

func translationResult(original, text string) Outbound {
	return Outbound{Type: TypeTranslation, Original: original, Text: text}
}

func translationFailed() Outbound {
	return Outbound{Type: TypeError, Message: translationFailedMessage}
}

func sessionEnded() Outbound {
	return Outbound{Type: TypeSessionEnded}
}

// State is the protocol state of one connection.
type State int

const (
	StateConnected State = iota
	StateInSession
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInSession:
		return "in_session"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
