package domain

import "time"

// Sender identifies who produced a Turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Turn is a single chat message. Turns are never modified after they are
// appended to a conversation.
type Turn struct {
	ID        string
	Sender    Sender
	Text      string
	CreatedAt time.Time
}
