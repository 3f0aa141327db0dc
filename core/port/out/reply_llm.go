package out

import (
	"context"
	"errors"
)

var (
	// ErrAINotConfigured is returned when the AI backend has no credentials.
	ErrAINotConfigured = errors.New("ai backend not configured")
	// ErrEmptyCompletion is returned when the backend answered without usable content.
	ErrEmptyCompletion = errors.New("ai backend returned no content")
)

// Completer defines the outbound port for the generative-text backend.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
