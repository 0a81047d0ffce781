package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-exchange/internal/integrations/transport"
)

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient(" ", nil)
	require.ErrorContains(t, err, "url")
}

func TestClient_Send_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Echo: hello"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	reply, err := c.Send(context.Background(), nil, "hello")
	require.NoError(t, err)
	require.Equal(t, "Echo: hello", reply)
}

func TestClient_Send_MissingMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reply":"x"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = c.Send(context.Background(), nil, "hello")
	require.ErrorIs(t, err, transport.ErrMalformedResponse)
}

func TestClient_Send_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method GET Not Allowed"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = c.Send(context.Background(), nil, "hello")
	var statusErr *transport.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusMethodNotAllowed, statusErr.StatusCode)
}
