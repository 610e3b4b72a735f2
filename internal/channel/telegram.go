package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTelegramAPIBase = "https://api.telegram.org"
	defaultTelegramTimeout = 8 * time.Second
)

// TelegramChannel sends messages through the Bot API sendMessage call with
// Markdown formatting.
type TelegramChannel struct {
	apiBase string
	token   string
	client  *http.Client
}

func NewTelegramChannel(apiBase, token string) *TelegramChannel {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = defaultTelegramAPIBase
	}
	return &TelegramChannel{
		apiBase: base,
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: defaultTelegramTimeout},
	}
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

type telegramSendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (c *TelegramChannel) SendText(ctx context.Context, chatID, text string) error {
	if c.token == "" {
		return fmt.Errorf("telegram channel requires a bot token")
	}
	payload := telegramSendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload failed: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
