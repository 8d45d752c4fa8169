package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"notify-hub/internal/domain/entity"
)

// Signature headers attached when the config carries a secret. Receivers
// recompute HMAC-SHA256 over the raw body to verify.
const (
	webhookSignatureHeader = "X-Notify-Signature"
	webhookTimestampHeader = "X-Notify-Timestamp"
)

// WebhookAdapter delivers a JSON envelope to a user-configured HTTP
// endpoint, optionally signing the raw body with HMAC-SHA256.
type WebhookAdapter struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	now         func() time.Time
}

func NewWebhookAdapter(timeout time.Duration) *WebhookAdapter {
	return &WebhookAdapter{
		httpClient:  newHTTPClient(timeout),
		rateLimiter: NewRateLimiter(5.0, 10),
		now:         time.Now,
	}
}

// WithRateLimit overrides the default client-side rate limit.
func (a *WebhookAdapter) WithRateLimit(perSecond float64, burst int) *WebhookAdapter {
	a.rateLimiter = NewRateLimiter(perSecond, burst)
	return a
}

func (a *WebhookAdapter) Kind() entity.ChannelKind {
	return entity.ChannelWebhook
}

// webhookEnvelope is the JSON body POSTed to the configured URL.
type webhookEnvelope struct {
	Subject     string `json:"subject,omitempty"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	Timestamp   int64  `json:"timestamp"`
}

func (a *WebhookAdapter) Send(ctx context.Context, cfg *entity.UserChannelConfig, msg *Message) (string, error) {
	settings, err := cfg.WebhookSettings()
	if err != nil {
		return "", &ClientError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	now := a.now().UTC()
	body, err := json.Marshal(webhookEnvelope{
		Subject:     msg.Subject,
		Content:     msg.Body,
		ContentType: string(msg.ContentType),
		Timestamp:   now.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal webhook envelope: %w", err)
	}

	headers := make(map[string]string, len(settings.Headers)+2)
	for k, v := range settings.Headers {
		headers[k] = v
	}
	if settings.Secret != "" {
		headers[webhookSignatureHeader] = signBody(settings.Secret, body)
		headers[webhookTimestampHeader] = strconv.FormatInt(now.Unix(), 10)
	}

	resp, respBody, err := postJSON(ctx, a.httpClient, settings.URL, body, headers)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyResponse("webhook", resp, respBody)
	}

	slog.Debug("webhook delivered",
		slog.String("user_id", cfg.UserID),
		slog.Int("status", resp.StatusCode))
	return "", nil
}

// signBody computes the hex HMAC-SHA256 of the raw request body.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
