package in

import (
	"context"

	"autoreply/core/domain"
)

// ConversationService is the per-message entry point used by the webhook.
type ConversationService interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) error
}

// ReplyService produces a reply for raw text. It never fails; failures are
// reported through domain.Reply.Err.
type ReplyService interface {
	Generate(ctx context.Context, text string) domain.Reply
}

// IntentService is the operator-facing intent store.
type IntentService interface {
	List() []domain.Intent
	ReplaceAll(intents []domain.Intent) []domain.Intent
	ReplaceAllJSON(raw []byte) ([]domain.Intent, error)
}

// MessageLogReader is the read side of the message log.
type MessageLogReader interface {
	Recent(limit int) []domain.LogEntry
	All() []domain.LogEntry
}

// TestMessageService sends an operator-initiated message outside the
// conversation pipeline.
type TestMessageService interface {
	SendTest(ctx context.Context, to, body string) error
}
