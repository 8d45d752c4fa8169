package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"notify-hub/internal/domain/entity"
)

// larkMaxContentLength is the bot API's documented text size limit, counted
// in characters, not bytes. Content is truncated before signing so the
// signature matches the transmitted body.
const larkMaxContentLength = 10000

const larkTruncationSuffix = "..."

// LarkAdapter delivers text messages through a Lark (Feishu) custom bot
// webhook, signing requests when the bot has a secret configured.
type LarkAdapter struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	now         func() time.Time
}

func NewLarkAdapter(timeout time.Duration) *LarkAdapter {
	return &LarkAdapter{
		httpClient:  newHTTPClient(timeout),
		rateLimiter: NewRateLimiter(5.0, 5),
		now:         time.Now,
	}
}

// WithRateLimit overrides the default client-side rate limit.
func (a *LarkAdapter) WithRateLimit(perSecond float64, burst int) *LarkAdapter {
	a.rateLimiter = NewRateLimiter(perSecond, burst)
	return a
}

func (a *LarkAdapter) Kind() entity.ChannelKind {
	return entity.ChannelLark
}

type larkPayload struct {
	Timestamp string          `json:"timestamp,omitempty"`
	Sign      string          `json:"sign,omitempty"`
	MsgType   string          `json:"msg_type"`
	Content   larkTextContent `json:"content"`
}

type larkTextContent struct {
	Text string `json:"text"`
}

type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (a *LarkAdapter) Send(ctx context.Context, cfg *entity.UserChannelConfig, msg *Message) (string, error) {
	settings, err := cfg.LarkSettings()
	if err != nil {
		return "", &ClientError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n" + text
	}
	// Truncate first, then sign, so the signature covers what is sent. The
	// cut lands on a rune boundary so multibyte text is never split.
	if utf8.RuneCountInString(text) > larkMaxContentLength {
		runes := []rune(text)
		text = string(runes[:larkMaxContentLength-len(larkTruncationSuffix)]) + larkTruncationSuffix
	}

	payload := larkPayload{
		MsgType: "text",
		Content: larkTextContent{Text: text},
	}
	if settings.Secret != "" {
		timestamp := strconv.FormatInt(a.now().Unix(), 10)
		payload.Timestamp = timestamp
		payload.Sign = larkSign(timestamp, settings.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal lark payload: %w", err)
	}

	resp, respBody, err := postJSON(ctx, a.httpClient, settings.WebhookURL, body, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyResponse("lark", resp, respBody)
	}

	// Lark reports application errors with HTTP 200 and a non-zero code.
	var lr larkResponse
	if err := json.Unmarshal(respBody, &lr); err == nil && lr.Code != 0 {
		return "", &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("lark api error %d: %s", lr.Code, lr.Msg),
		}
	}

	slog.Debug("lark message delivered", slog.String("user_id", cfg.UserID))
	return "", nil
}

// larkSign computes the bot signature. Per the Lark protocol the HMAC key is
// the string "{timestamp}\n{secret}" and the signed message is empty.
func larkSign(timestamp, secret string) string {
	key := timestamp + "\n" + secret
	mac := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
