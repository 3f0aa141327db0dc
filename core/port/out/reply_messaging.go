package out

import (
	"context"
	"errors"
)

// ErrTransportNotConfigured is returned by a MessageSender that has no
// credentials. Callers treat it as a no-op dispatch.
var ErrTransportNotConfigured = errors.New("messaging transport not configured")

// MessageSender defines the outbound port for the messaging provider.
type MessageSender interface {
	// Send delivers body to the external identifier to (e.g. "whatsapp:+1555...").
	Send(ctx context.Context, to, body string) error
}

// InboundDeduper remembers provider message ids so redelivered webhooks are
// acknowledged without producing a second reply.
type InboundDeduper interface {
	// FirstSeen returns true the first time key is presented within the
	// retention window.
	FirstSeen(ctx context.Context, key string) (bool, error)
}
