package entity

import "fmt"

// CustomContent carries literal subject/body content supplied directly by the
// caller instead of a template reference.
type CustomContent struct {
	Subject string `json:"subject,omitempty"`
	Content string `json:"content"`
}

// DeliveryRequest is one inbound request to deliver a notification to a user
// across one or more channels. Exactly one of TemplateKey and CustomContent
// must be set; Channels must be non-empty and contain only known kinds.
type DeliveryRequest struct {
	UserID         string
	Channels       []ChannelKind
	TemplateKey    string
	Variables      map[string]string
	CustomContent  *CustomContent
	IdempotencyKey string
	Metadata       map[string]string
}

// UsesTemplate reports whether the request resolves its content through a
// template rather than caller-supplied custom content.
func (r *DeliveryRequest) UsesTemplate() bool {
	return r.TemplateKey != ""
}

// Validate checks the request shape. A failure here is a whole-request,
// non-retryable validation error; nothing is dispatched.
func (r *DeliveryRequest) Validate() error {
	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "must not be empty"}
	}
	if len(r.Channels) == 0 {
		return &ValidationError{Field: "channels", Message: "must contain at least one channel"}
	}
	seen := make(map[ChannelKind]bool, len(r.Channels))
	for _, ch := range r.Channels {
		if !ch.IsValid() {
			return &ValidationError{
				Field:   "channels",
				Message: fmt.Sprintf("unknown channel kind %q (supported: %v)", ch, KnownChannelKinds),
			}
		}
		if seen[ch] {
			return &ValidationError{
				Field:   "channels",
				Message: fmt.Sprintf("duplicate channel kind %q", ch),
			}
		}
		seen[ch] = true
	}

	hasTemplate := r.TemplateKey != ""
	hasCustom := r.CustomContent != nil
	if hasTemplate == hasCustom {
		return &ValidationError{
			Field:   "content",
			Message: "exactly one of template_key and custom_content must be set",
		}
	}
	if hasCustom && r.CustomContent.Content == "" {
		return &ValidationError{Field: "custom_content.content", Message: "must not be empty"}
	}

	return nil
}
