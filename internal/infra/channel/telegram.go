package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"notify-hub/internal/domain/entity"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

// telegramMarkdownV2Reserved is the Bot API's reserved character set for
// MarkdownV2. Every occurrence in literal text must be backslash-escaped.
const telegramMarkdownV2Reserved = "_*[]()~`>#+-=|{}.!"

// TelegramAdapter delivers messages through the Telegram Bot API using the
// per-user bot_token and chat_id.
type TelegramAdapter struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	apiBase     string
}

func NewTelegramAdapter(timeout time.Duration) *TelegramAdapter {
	return &TelegramAdapter{
		httpClient:  newHTTPClient(timeout),
		rateLimiter: NewRateLimiter(1.0, 3),
		apiBase:     defaultTelegramAPIBase,
	}
}

// WithRateLimit overrides the default client-side rate limit.
func (a *TelegramAdapter) WithRateLimit(perSecond float64, burst int) *TelegramAdapter {
	a.rateLimiter = NewRateLimiter(perSecond, burst)
	return a
}

// WithAPIBase overrides the Bot API base URL, e.g. for a local bot API server.
func (a *TelegramAdapter) WithAPIBase(base string) *TelegramAdapter {
	a.apiBase = base
	return a
}

func (a *TelegramAdapter) Kind() entity.ChannelKind {
	return entity.ChannelTelegram
}

type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (a *TelegramAdapter) Send(ctx context.Context, cfg *entity.UserChannelConfig, msg *Message) (string, error) {
	settings, err := cfg.TelegramSettings()
	if err != nil {
		return "", &ClientError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	// Markdown variants are authored in MarkdownV2 already; everything else
	// is literal text and must have the reserved set escaped.
	text := msg.Body
	subject := msg.Subject
	if msg.ContentType != entity.ContentTypeMarkdown {
		text = EscapeMarkdownV2(text)
	}
	if subject != "" {
		text = "*" + EscapeMarkdownV2(subject) + "*\n\n" + text
	}

	body, err := json.Marshal(telegramSendMessage{
		ChatID:    settings.ChatID,
		Text:      text,
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return "", fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.apiBase, settings.BotToken)
	resp, respBody, err := postJSON(ctx, a.httpClient, url, body, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A 429 here carries parameters.retry_after in the body; the hint
		// flows into the backoff schedule through RateLimitError.
		return "", classifyResponse("telegram", resp, respBody)
	}

	var tr telegramResponse
	if err := json.Unmarshal(respBody, &tr); err == nil && !tr.OK {
		return "", &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("telegram api error: %s", tr.Description),
		}
	}

	slog.Debug("telegram message delivered",
		slog.String("user_id", cfg.UserID),
		slog.Int64("telegram_message_id", tr.Result.MessageID))
	return strconv.FormatInt(tr.Result.MessageID, 10), nil
}

// EscapeMarkdownV2 backslash-escapes the MarkdownV2 reserved characters so
// literal text survives parse_mode=MarkdownV2 untouched.
func EscapeMarkdownV2(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(telegramMarkdownV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
