// Package telegram is the inbound chat transport: a long-polling consumer
// of the Bot API that feeds messages into the conversation flow.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIBase     = "https://api.telegram.org"
	longPollSeconds    = 30
	errorBackoff       = 3 * time.Second
	defaultHTTPTimeout = time.Duration(longPollSeconds+10) * time.Second
)

// Flow is the conversation surface the poller drives.
type Flow interface {
	Start(chatID string)
	OnMessage(chatID, text string)
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Poller long-polls getUpdates and hands each inbound text to the flow.
// The reset command restarts the chat's session before anything else.
type Poller struct {
	apiBase string
	token   string
	flow    Flow
	client  *http.Client
	offset  int64
}

func NewPoller(apiBase, token string, flow Flow) *Poller {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &Poller{
		apiBase: base,
		token:   strings.TrimSpace(token),
		flow:    flow,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Run polls until the context is cancelled. Transport errors are logged and
// retried after a short backoff; the loop never exits on its own.
func (p *Poller) Run(ctx context.Context) {
	if p.token == "" {
		log.Printf("telegram poller disabled, no bot token configured")
		return
	}
	log.Printf("telegram poller starting")
	for {
		if ctx.Err() != nil {
			log.Printf("telegram poller stopping")
			return
		}
		updates, err := p.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("telegram poller stopping")
				return
			}
			log.Printf("telegram poll failed err=%v", err)
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
			}
			continue
		}
		for _, u := range updates {
			p.handle(u)
		}
	}
}

func (p *Poller) fetchUpdates(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(longPollSeconds))
	if p.offset > 0 {
		q.Set("offset", strconv.FormatInt(p.offset, 10))
	}
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", p.apiBase, p.token, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var parsed updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram reported not ok")
	}
	return parsed.Result, nil
}

func (p *Poller) handle(u update) {
	if u.UpdateID >= p.offset {
		p.offset = u.UpdateID + 1
	}
	if u.Message == nil {
		return
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/start") {
		p.flow.Start(chatID)
		return
	}
	p.flow.OnMessage(chatID, text)
}
