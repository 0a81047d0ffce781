package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-exchange/internal/integrations/transport"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   ErrorCode
		reason string
	}{
		{"malformed", transport.Malformed("openai", "no choices"), ErrorMalformedResponse, "reply_shape"},
		{"rate limited", &transport.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, ErrorRateLimited, "backend_rate_limited"},
		{"upstream", fmt.Errorf("openai: request failed: %w", &transport.HTTPStatusError{StatusCode: 503}), ErrorUpstream, "backend_status_503"},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), ErrorTransport, "backend_timeout"},
		{"cancelled", context.Canceled, ErrorTransport, "backend_timeout"},
		{"network", errors.New("connection refused"), ErrorTransport, "backend_unreachable"},
		{"already classified", newError(ErrorInternal, "x", nil), ErrorInternal, "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			require.Equal(t, tc.code, got.Code)
			require.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestFailureText(t *testing.T) {
	require.Equal(t, "Error: model overloaded",
		FailureText(&transport.HTTPStatusError{StatusCode: 500, Body: `{"error":"model overloaded"}`}))
	require.Equal(t, "Error: quota exceeded",
		FailureText(&transport.HTTPStatusError{StatusCode: 429, Body: `{"error":{"message":"quota exceeded"}}`}))
	require.Equal(t, "Error: the chat backend failed with status 502 (Bad Gateway).",
		FailureText(&transport.HTTPStatusError{StatusCode: 502, Body: `<html/>`}))
	require.Equal(t, "Error: the chat backend returned an unexpected response.",
		FailureText(transport.Malformed("echo", "missing message field")))
	require.Equal(t, "Error: the chat backend did not answer in time.",
		FailureText(context.DeadlineExceeded))
	require.Contains(t, FailureText(errors.New("connection refused")), "connection refused")
}

func TestError_Formatting(t *testing.T) {
	require.Equal(t, "usecase: REQUEST_PENDING (request_in_flight)", newError(ErrorRequestPending, "request_in_flight", nil).Error())
	wrapped := newError(ErrorTransport, "backend_unreachable", errors.New("boom"))
	require.Equal(t, "usecase: TRANSPORT_ERROR (backend_unreachable): boom", wrapped.Error())
	require.EqualError(t, errors.Unwrap(wrapped), "boom")

	var nilErr *Error
	require.Empty(t, nilErr.Error())
	require.NoError(t, nilErr.Unwrap())
}
