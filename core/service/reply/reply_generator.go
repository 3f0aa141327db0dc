// Package reply chooses between intent replies and the AI fallback, and runs
// the per-message conversation pipeline.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autoreply/core/domain"
	"autoreply/core/port/out"
	"autoreply/pkg/apperr"
	"autoreply/pkg/logger"
	"autoreply/pkg/metrics"
)

// ApologyText is sent whenever the AI fallback cannot produce a reply.
const ApologyText = "Sorry, I'm having trouble answering right now."

// Metric names recorded by the generator.
const (
	MetricIntentHit    = "reply_intent_hit"
	MetricAIReply      = "reply_ai"
	MetricAIFallback   = "reply_ai_failed"
	MetricAICompletion = "ai_completion"
)

const defaultAITimeout = 20 * time.Second

// Classifier finds the intent owning text.
type Classifier interface {
	Classify(text string) (domain.Intent, bool)
}

// Tagger labels text with a sentiment.
type Tagger interface {
	Tag(text string) domain.Sentiment
}

// GeneratorConfig holds the business identity used in the AI system prompt.
type GeneratorConfig struct {
	BusinessName string
	Website      string
	AITimeout    time.Duration
}

// Generator produces replies. The AI backend is optional; a nil Completer
// behaves like an unconfigured backend.
type Generator struct {
	classifier Classifier
	tagger     Tagger
	ai         out.Completer
	cfg        GeneratorConfig
	metrics    *metrics.Registry
	log        *logger.Logger
}

// NewGenerator creates a reply generator. metrics and log may be nil.
func NewGenerator(
	classifier Classifier,
	tagger Tagger,
	ai out.Completer,
	cfg GeneratorConfig,
	reg *metrics.Registry,
	log *logger.Logger,
) *Generator {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if reg == nil {
		reg = metrics.NewRegistry(0)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Generator{
		classifier: classifier,
		tagger:     tagger,
		ai:         ai,
		cfg:        cfg,
		metrics:    reg,
		log:        log.WithField("component", "reply_generator"),
	}
}

// SystemPrompt is the fixed instruction sent with every AI request.
func (g *Generator) SystemPrompt() string {
	return fmt.Sprintf(
		"You are an assistant for %s. Be friendly and concise (1-2 sentences). Website: %s",
		g.cfg.BusinessName, g.cfg.Website,
	)
}

// UserMessage annotates text with its sentiment label.
func UserMessage(text string, sentiment domain.Sentiment) string {
	return text + " (sentiment: " + string(sentiment) + ")"
}

// Generate returns the reply for text. Intent matches bypass the AI backend
// entirely. The returned Reply always carries usable Text.
func (g *Generator) Generate(ctx context.Context, text string) domain.Reply {
	if intent, ok := g.classifier.Classify(text); ok {
		g.metrics.Counter(MetricIntentHit).Inc()
		return domain.Reply{
			Text:   intent.Reply,
			Source: domain.ReplySourceIntent,
			Intent: intent.Name,
		}
	}

	sentiment := g.tagger.Tag(text)
	answer, err := g.complete(ctx, UserMessage(text, sentiment))
	if err != nil {
		g.metrics.Counter(MetricAIFallback).Inc()
		g.log.WithContext(ctx).WithError(err).Warn("AI reply failed, sending apology")
		return domain.Reply{
			Text:      ApologyText,
			Source:    domain.ReplySourceFallback,
			Sentiment: sentiment,
			Err:       err,
		}
	}

	g.metrics.Counter(MetricAIReply).Inc()
	return domain.Reply{
		Text:      answer,
		Source:    domain.ReplySourceAI,
		Sentiment: sentiment,
	}
}

// GenerateReply is Generate reduced to the reply text.
func (g *Generator) GenerateReply(ctx context.Context, text string) string {
	return g.Generate(ctx, text).Text
}

func (g *Generator) complete(ctx context.Context, userMessage string) (answer string, err error) {
	if g.ai == nil {
		return "", out.ErrAINotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.AITimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			answer, err = "", fmt.Errorf("ai backend panic: %v", r)
		}
		g.metrics.Latency(MetricAICompletion).Since(start)
	}()

	answer, err = g.ai.Complete(ctx, g.SystemPrompt(), userMessage)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", apperr.Timeout("ai completion").WithDetail("after", g.cfg.AITimeout.String()), err)
		}
		return "", err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", out.ErrEmptyCompletion
	}
	return answer, nil
}
