// Package notify delivers human-facing alerts. Delivery is best effort;
// a failed alert never affects the trading loop.
package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Noop satisfies the alerter contract while alerting is disabled.
type Noop struct{}

// Alert does nothing.
func (Noop) Alert(context.Context, string) {}

// Telegram posts alerts to a chat via the bot API.
type Telegram struct {
	token  string
	chatID string
	http   *http.Client
	log    zerolog.Logger
}

// NewTelegram builds an alerter for the given bot token and chat.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

// Alert sends one message, logging and swallowing any failure.
func (t *Telegram) Alert(ctx context.Context, text string) {
	endpoint := "https://api.telegram.org/bot" + t.token + "/sendMessage"
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.log.Warn().Err(err).Msg("telegram request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		t.log.Warn().Err(err).Msg("telegram alert failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.log.Warn().Int("status", resp.StatusCode).Msg("telegram alert rejected")
	}
}
