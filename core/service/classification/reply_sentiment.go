package classification

import (
	"strings"

	"autoreply/core/domain"
)

// Default keyword sets. They are substring matches, so "not" also fires on
// "nothing"; the tagger is a heuristic annotation, not a classifier.
var (
	DefaultNegativeKeywords = []string{"bad", "not", "worst", "cancel"}
	DefaultPositiveKeywords = []string{"thanks", "thank", "great", "good"}
)

// SentimentTagger assigns positive, negative or neutral by keyword presence.
// Negative keywords take precedence.
type SentimentTagger struct {
	negative []string
	positive []string
}

// NewSentimentTagger creates a tagger with the default keyword sets.
func NewSentimentTagger() *SentimentTagger {
	return NewSentimentTaggerWithKeywords(DefaultNegativeKeywords, DefaultPositiveKeywords)
}

// NewSentimentTaggerWithKeywords creates a tagger with custom keyword sets.
func NewSentimentTaggerWithKeywords(negative, positive []string) *SentimentTagger {
	return &SentimentTagger{
		negative: lowerAll(negative),
		positive: lowerAll(positive),
	}
}

// Tag labels text.
func (t *SentimentTagger) Tag(text string) domain.Sentiment {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, t.negative):
		return domain.SentimentNegative
	case containsAny(lower, t.positive):
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
