package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type recordingChannel struct {
	mu       sync.Mutex
	messages map[string][]string
	fail     bool
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) SendText(_ context.Context, chatID, text string) error {
	if c.fail {
		return errors.New("boom")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages == nil {
		c.messages = map[string][]string{}
	}
	c.messages[chatID] = append(c.messages[chatID], text)
	return nil
}

func (c *recordingChannel) forChat(chatID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages[chatID]...)
}

func TestDispatcherPreservesPerChatOrder(t *testing.T) {
	ch := &recordingChannel{}
	d := NewDispatcher(ch, 4)

	const perChat = 50
	for i := 0; i < perChat; i++ {
		d.Send("alpha", fmt.Sprintf("a-%03d", i))
		d.Send("beta", fmt.Sprintf("b-%03d", i))
	}
	d.Close()

	for _, chatID := range []string{"alpha", "beta"} {
		got := ch.forChat(chatID)
		if len(got) != perChat {
			t.Fatalf("chat %s: expected %d messages, got %d", chatID, perChat, len(got))
		}
		for i, text := range got {
			want := fmt.Sprintf("%s-%03d", chatID[:1], i)
			if text != want {
				t.Fatalf("chat %s: out of order at %d: got %q want %q", chatID, i, text, want)
			}
		}
	}
}

func TestDispatcherDeliveryFailureIsSwallowed(t *testing.T) {
	ch := &recordingChannel{fail: true}
	d := NewDispatcher(ch, 1)
	d.Send("1", "hello")
	d.Close()
	// No panic, no retry, nothing to assert beyond clean shutdown.
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(&recordingChannel{}, 2)
	d.Send("1", "hello")
	d.Close()
	d.Close()
}
