package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"notify-hub/internal/domain/entity"
)

// SlackAdapter posts mrkdwn-formatted text to a Slack incoming webhook.
type SlackAdapter struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

func NewSlackAdapter(timeout time.Duration) *SlackAdapter {
	return &SlackAdapter{
		httpClient: newHTTPClient(timeout),
		// Slack incoming webhooks allow 1 message per second.
		rateLimiter: NewRateLimiter(1.0, 1),
	}
}

// WithRateLimit overrides the default client-side rate limit.
func (a *SlackAdapter) WithRateLimit(perSecond float64, burst int) *SlackAdapter {
	a.rateLimiter = NewRateLimiter(perSecond, burst)
	return a
}

func (a *SlackAdapter) Kind() entity.ChannelKind {
	return entity.ChannelSlack
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type string           `json:"type"`
	Text *slackTextObject `json:"text,omitempty"`
}

type slackTextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (a *SlackAdapter) Send(ctx context.Context, cfg *entity.UserChannelConfig, msg *Message) (string, error) {
	settings, err := cfg.SlackSettings()
	if err != nil {
		return "", &ClientError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = fmt.Sprintf("*%s*\n\n%s", msg.Subject, msg.Body)
	}
	payload := slackPayload{
		Text: text,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackTextObject{Type: "mrkdwn", Text: text}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, respBody, err := postJSON(ctx, a.httpClient, settings.WebhookURL, body, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyResponse("slack", resp, respBody)
	}

	slog.Debug("slack message delivered", slog.String("user_id", cfg.UserID))
	return "", nil
}
