package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"chat-exchange/internal/usecase"
)

type stubEchoer struct {
	out string
	err error
	in  string
}

func (s *stubEchoer) Echo(_ context.Context, message string) (string, error) {
	s.in = message
	return s.out, s.err
}

func makeEvent(method, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       "/api/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustHandler(t *testing.T, e Echoer) *Handler {
	t.Helper()
	h, err := NewHandler(e)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_EchoesMessage(t *testing.T) {
	h := mustHandler(t, usecase.NewEchoService())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hello"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])

	out := parseBody[messageResponse](t, resp.Body)
	require.Equal(t, "Echo: hello", out.Message)
	require.NotEmpty(t, resp.Headers[correlationHeader])
}

func TestHandle_PassesMessageToEchoer(t *testing.T) {
	e := &stubEchoer{out: "ok"}
	h := mustHandler(t, e)

	_, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"What do you do?"}`))
	require.NoError(t, err)
	require.Equal(t, "What do you do?", e.in)
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	h := mustHandler(t, usecase.NewEchoService())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		resp, err := h.Handle(context.Background(), makeEvent(method, ""))
		require.NoError(t, err)
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		require.Equal(t, "POST", resp.Headers["Allow"])
		require.Equal(t, "Method "+method+" Not Allowed", resp.Body)
	}
}

func TestHandle_InvalidBody(t *testing.T) {
	h := mustHandler(t, usecase.NewEchoService())

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "pending", err: &usecase.Error{Code: usecase.ErrorRequestPending, Reason: "request_in_flight"}, status: http.StatusConflict, code: string(usecase.ErrorRequestPending)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "backend_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "backend_status_500"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "x"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mustHandler(t, &stubEchoer{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, `{"message":"hi"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := mustHandler(t, usecase.NewEchoService())

	event := makeEvent(http.MethodPost, `{"message":"hi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers[correlationHeader])
}

func TestGin_ServesEchoEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(mustHandler(t, usecase.NewEchoService()), "/api/chat")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(correlationHeader, "corr-9")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Echo: hello"}`, rec.Body.String())
	require.Equal(t, "corr-9", rec.Header().Get(correlationHeader))
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestGin_MethodNotAllowed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(mustHandler(t, usecase.NewEchoService()), "/api/chat")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "POST", rec.Header().Get("Allow"))
	require.Equal(t, "Method GET Not Allowed", rec.Body.String())
}
