package usecase

import "context"

const echoPrefix = "Echo: "

// EchoService answers every message by repeating it.
type EchoService struct{}

func NewEchoService() *EchoService {
	return &EchoService{}
}

func (EchoService) Echo(_ context.Context, message string) (string, error) {
	return echoPrefix + message, nil
}
