// Package channel implements the per-protocol delivery adapters. Each
// adapter knows how to sign, format, and transmit one channel's payload,
// and classifies transport failures as retryable or not.
package channel

import (
	"context"
	"fmt"

	"notify-hub/internal/domain/entity"
)

// Message is the rendered content handed to an adapter for transmission.
type Message struct {
	Subject     string
	Body        string
	ContentType entity.ContentType
}

// Adapter transmits one message over a single channel protocol.
//
// Send returns a channel-side message reference when the protocol provides
// one (empty otherwise). Errors are always one of the typed errors in this
// package or a plain transport error; callers use Retryable and RetryAfter
// to classify them.
type Adapter interface {
	Kind() entity.ChannelKind
	Send(ctx context.Context, cfg *entity.UserChannelConfig, msg *Message) (string, error)
}

// Registry maps channel kinds to their adapters.
type Registry map[entity.ChannelKind]Adapter

// NewRegistry builds a registry from the given adapters. Duplicate kinds
// are a programming error.
func NewRegistry(adapters ...Adapter) (Registry, error) {
	reg := make(Registry, len(adapters))
	for _, a := range adapters {
		if _, dup := reg[a.Kind()]; dup {
			return nil, fmt.Errorf("duplicate adapter for channel %q", a.Kind())
		}
		reg[a.Kind()] = a
	}
	return reg, nil
}

// Lookup returns the adapter for kind, or an error when none is registered.
func (r Registry) Lookup(kind entity.ChannelKind) (Adapter, error) {
	a, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for channel %q", kind)
	}
	return a, nil
}
