package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"chat-exchange/internal/integrations/transport"
)

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorRequestPending    ErrorCode = "REQUEST_PENDING"
	ErrorTransport         ErrorCode = "TRANSPORT_ERROR"
	ErrorRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrorMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type errorMessager interface {
	ErrorMessage() string
}

// classify maps a backend failure onto the error taxonomy.
func classify(err error) *Error {
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, transport.ErrMalformedResponse) {
		return newError(ErrorMalformedResponse, "reply_shape", err)
	}
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		if statusErr.HTTPStatusCode() == http.StatusTooManyRequests {
			return newError(ErrorRateLimited, "backend_rate_limited", err)
		}
		return newError(ErrorUpstream, fmt.Sprintf("backend_status_%d", statusErr.HTTPStatusCode()), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorTransport, "backend_timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrorTransport, "backend_timeout", err)
	}
	return newError(ErrorTransport, "backend_unreachable", err)
}

// FailureText renders a backend failure as the text of an in-conversation
// error turn. The result is never empty.
func FailureText(err error) string {
	e := classify(err)
	switch e.Code {
	case ErrorUpstream, ErrorRateLimited:
		var m errorMessager
		if errors.As(err, &m) {
			if msg := strings.TrimSpace(m.ErrorMessage()); msg != "" {
				return "Error: " + msg
			}
		}
		var statusErr httpStatusCoder
		if errors.As(err, &statusErr) {
			code := statusErr.HTTPStatusCode()
			return fmt.Sprintf("Error: the chat backend failed with status %d (%s).", code, http.StatusText(code))
		}
		return "Error: the chat backend rejected the request."
	case ErrorMalformedResponse:
		return "Error: the chat backend returned an unexpected response."
	case ErrorTransport:
		if e.Reason == "backend_timeout" {
			return "Error: the chat backend did not answer in time."
		}
		return "Error: could not reach the chat backend (" + err.Error() + ")."
	}
	return "Error: " + err.Error()
}
