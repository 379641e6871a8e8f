package translation

import (
	"context"
	"errors"
	"fmt"
	"net"

	"translation-relay/internal/integrations/completion"
)

type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindUpstream  Kind = "upstream_error"
	KindTransport Kind = "transport_error"
	KindMalformed Kind = "malformed_response"
)

// Error is the only error type Translate returns.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("translation: %s (%s)", e.Kind, e.Reason)
	}
	return fmt.Sprintf("translation: %s (%s): %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the failure kind of err, or "" if err is not a translation error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// classify maps a completion client failure onto the translation taxonomy.
func classify(err error) *Error {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		return &Error{Kind: KindUpstream, Reason: fmt.Sprintf("status_%d", statusErr.HTTPStatusCode()), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Reason: "deadline_exceeded", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Reason: "request_timeout", Err: err}
	}
	if errors.Is(err, completion.ErrMalformedResponse) {
		return &Error{Kind: KindMalformed, Reason: "decode_error", Err: err}
	}
	return &Error{Kind: KindTransport, Reason: "request_error", Err: err}
}
