package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"chat-exchange/handler"
	"chat-exchange/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

func newServeEchoCmd(_ *app) *cobra.Command {
	var addr, path string
	cmd := &cobra.Command{
		Use:   "serve-echo",
		Short: "Serve the echo endpoint for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			router, err := newEchoRouter(path)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "Listen address")
	cmd.Flags().StringVar(&path, "path", "/api/chat", "Route of the echo endpoint")
	return cmd
}

func newEchoRouter(path string) (*gin.Engine, error) {
	h, err := handler.NewHandler(usecase.NewEchoService())
	if err != nil {
		return nil, err
	}
	gin.SetMode(gin.ReleaseMode)
	return handler.NewRouter(h, path), nil
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("echo server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("echo server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
