package channel

import (
	"context"
	"log"
	"unicode/utf8"
)

// Channel delivers one outbound text message to a chat identity.
type Channel interface {
	Name() string
	SendText(ctx context.Context, chatID, text string) error
}

// ConsoleChannel is the local development sink. Message bodies are never
// logged, only their length.
type ConsoleChannel struct{}

func NewConsoleChannel() *ConsoleChannel {
	return &ConsoleChannel{}
}

func (c *ConsoleChannel) Name() string {
	return "console"
}

func (c *ConsoleChannel) SendText(_ context.Context, chatID, text string) error {
	log.Printf("[console] outbound message delivered chat_id=%s chars=%d", chatID, utf8.RuneCountInString(text))
	return nil
}
