package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"chat-exchange/handler"
	"chat-exchange/internal/usecase"
)

func main() {
	// ---- Handler ----
	h, err := handler.NewHandler(usecase.NewEchoService())
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
