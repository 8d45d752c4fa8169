package dispatch

import "errors"

var (
	// ErrTemplateNotFound indicates the request referenced an unknown
	// template key. Every requested channel reports a terminal failure;
	// nothing is sent.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrVariantMissing indicates the template has no content variant for
	// one of the requested channels. Only that channel fails.
	ErrVariantMissing = errors.New("template has no variant for channel")

	// ErrChannelNotConfigured indicates the user has no active config for
	// one of the requested channels. Only that channel fails; no retry.
	ErrChannelNotConfigured = errors.New("channel not configured for user")
)
