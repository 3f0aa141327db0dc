// Package classification matches inbound text against intents and tags its sentiment.
package classification

import (
	"strings"

	"autoreply/core/domain"
)

// IntentSource provides the ordered intent list to match against.
type IntentSource interface {
	Snapshot() []domain.Intent
}

// IntentClassifier applies a first-match policy: intents are tried in stored
// order, and within an intent its patterns in stored order.
type IntentClassifier struct {
	intents IntentSource
}

// NewIntentClassifier creates a classifier reading from intents.
func NewIntentClassifier(intents IntentSource) *IntentClassifier {
	return &IntentClassifier{intents: intents}
}

// Classify returns the first intent with a pattern contained in text,
// case-insensitively. ok is false when nothing matches.
func (c *IntentClassifier) Classify(text string) (match domain.Intent, ok bool) {
	lower := strings.ToLower(text)
	for _, intent := range c.intents.Snapshot() {
		if matchesAny(lower, intent.Patterns) {
			return intent.Clone(), true
		}
	}
	return domain.Intent{}, false
}

func matchesAny(lower string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
