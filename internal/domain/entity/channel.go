package entity

import "fmt"

// ChannelKind identifies one supported delivery protocol.
type ChannelKind string

const (
	// ChannelWebhook delivers to a caller-owned HTTP endpoint with an HMAC
	// signature over the request body.
	ChannelWebhook ChannelKind = "webhook"
	// ChannelLark delivers through a Lark (Feishu) custom bot webhook.
	ChannelLark ChannelKind = "lark"
	// ChannelTelegram delivers through the Telegram Bot API.
	ChannelTelegram ChannelKind = "telegram"
	// ChannelSlack delivers through a Slack incoming webhook.
	ChannelSlack ChannelKind = "slack"
)

// KnownChannelKinds lists every supported channel, in a stable order used for
// error messages and iteration.
var KnownChannelKinds = []ChannelKind{ChannelWebhook, ChannelLark, ChannelTelegram, ChannelSlack}

// IsValid reports whether k names a supported channel.
func (k ChannelKind) IsValid() bool {
	switch k {
	case ChannelWebhook, ChannelLark, ChannelTelegram, ChannelSlack:
		return true
	}
	return false
}

func (k ChannelKind) String() string { return string(k) }

// ParseChannelKind converts an external string into a ChannelKind, rejecting
// unknown values.
func ParseChannelKind(s string) (ChannelKind, error) {
	k := ChannelKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown channel kind %q (supported: %v)", s, KnownChannelKinds)
	}
	return k, nil
}

// ContentType governs the escaping rules applied when rendering a template
// variant's body.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeHTML     ContentType = "html"
	// ContentTypeStructured marks machine-oriented payloads (webhook JSON
	// envelopes). Rendering and adapters apply no escaping, same as text.
	ContentTypeStructured ContentType = "structured"
)

// IsValid reports whether t names a supported content type.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeText, ContentTypeMarkdown, ContentTypeHTML, ContentTypeStructured:
		return true
	}
	return false
}
