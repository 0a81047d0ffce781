package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chat-exchange/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Echoer interface {
	Echo(ctx context.Context, message string) (string, error)
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the echo endpoint behind API Gateway.
type Handler struct {
	echo Echoer
}

func NewHandler(echo Echoer) (*Handler, error) {
	if echo == nil {
		return nil, errors.New("handler: echoer must not be nil")
	}
	return &Handler{echo: echo}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	log := slog.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	if req.HTTPMethod != http.MethodPost {
		log.Info("method not allowed")
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Headers: map[string]string{
				"Allow":           http.MethodPost,
				"Content-Type":    "text/plain; charset=utf-8",
				correlationHeader: corrID,
			},
			Body: fmt.Sprintf("Method %s Not Allowed", req.HTTPMethod),
		}, nil
	}

	var in messageRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		log.Info("invalid request body", "err", err)
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
	}

	reply, err := h.echo.Echo(ctx, in.Message)
	if err != nil {
		status, code := mapError(err)
		log.Error("echo failed", "code", code, "err", err)
		return jsonResponse(status, corrID, errorResponse{Error: string(code)}), nil
	}

	log.Info("echo served", "message_len", len(in.Message))
	return jsonResponse(http.StatusOK, corrID, messageResponse{Message: reply}), nil
}

func mapError(err error) (int, usecase.ErrorCode) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, ue.Code
	case usecase.ErrorRequestPending:
		return http.StatusConflict, ue.Code
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, ue.Code
	case usecase.ErrorUpstream, usecase.ErrorMalformedResponse, usecase.ErrorTransport:
		return http.StatusBadGateway, ue.Code
	default:
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
