package entity

import "time"

// ContentVariant is the channel-specific rendering of a template: body text,
// optional subject, and the content type governing escaping rules.
type ContentVariant struct {
	ID          int64
	TemplateKey string
	Channel     ChannelKind
	ContentType ContentType
	Subject     string
	Body        string
}

// Template declares a reusable notification template: the variable names it
// expects and one ContentVariant per channel it supports.
type Template struct {
	Key       string
	Name      string
	Variables []string
	Variants  []ContentVariant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VariantFor returns the content variant for the given channel, or nil if
// the template does not support that channel.
func (t *Template) VariantFor(kind ChannelKind) *ContentVariant {
	for i := range t.Variants {
		if t.Variants[i].Channel == kind {
			return &t.Variants[i]
		}
	}
	return nil
}

// Validate checks that the template is usable: it must carry at least one
// content variant and every variant must name a known channel and content type.
func (t *Template) Validate() error {
	if t.Key == "" {
		return &ValidationError{Field: "key", Message: "must not be empty"}
	}
	if len(t.Variants) == 0 {
		return &ValidationError{Field: "variants", Message: "template must have at least one content variant"}
	}
	for _, v := range t.Variants {
		if !v.Channel.IsValid() {
			return &ValidationError{Field: "variants.channel", Message: "unknown channel kind " + v.Channel.String()}
		}
		if !v.ContentType.IsValid() {
			return &ValidationError{Field: "variants.content_type", Message: "unknown content type " + string(v.ContentType)}
		}
		if v.Body == "" {
			return &ValidationError{Field: "variants.body", Message: "must not be empty"}
		}
	}
	return nil
}
