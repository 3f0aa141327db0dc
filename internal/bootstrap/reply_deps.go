package bootstrap

import (
	"context"

	"autoreply/adapter/out/dedupe"
	"autoreply/adapter/out/llm"
	"autoreply/adapter/out/twilio"
	"autoreply/config"
	"autoreply/core/domain"
	"autoreply/core/port/out"
	"autoreply/core/service/classification"
	"autoreply/core/service/intent"
	"autoreply/core/service/messagelog"
	"autoreply/core/service/reply"
	"autoreply/pkg/cache"
	"autoreply/pkg/logger"
	"autoreply/pkg/metrics"
)

const latencyWindow = 1000

type Dependencies struct {
	Config *config.Config
	Redis  *cache.RedisCache

	// State
	Intents  *intent.Store
	Messages *messagelog.Log
	Metrics  *metrics.Registry

	// Adapters
	Sender    out.MessageSender
	Completer out.Completer
	Deduper   out.InboundDeduper

	// Services
	Generator    *reply.Generator
	Conversation *reply.Conversation
}

// NewDependencies wires the core services. Missing credentials and an
// unreachable Redis are reported as warnings; neither aborts startup.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	redisCache, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, webhook dedupe disabled")
		redisCache = nil
	} else if redisCache.Enabled() {
		logger.Info("Redis connected")
	}

	sender := twilio.NewClient(twilio.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
		BaseURL:    cfg.TwilioAPIBaseURL,
	}, logger.Component("twilio"))

	completer := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: &cfg.LLMTemperature,
	}, logger.Component("openai"))

	store := intent.NewStore(domain.DefaultIntents())
	messages := messagelog.New()
	registry := metrics.NewRegistry(latencyWindow)

	generator := reply.NewGenerator(
		classification.NewIntentClassifier(store),
		classification.NewSentimentTagger(),
		completer,
		reply.GeneratorConfig{
			BusinessName: cfg.BusinessName,
			Website:      cfg.WebsiteURL,
			AITimeout:    cfg.LLMTimeout(),
		},
		registry,
		logger.Default(),
	)
	conversation := reply.NewConversation(messages, generator, sender, logger.Default())

	deps := &Dependencies{
		Config:       cfg,
		Redis:        redisCache,
		Intents:      store,
		Messages:     messages,
		Metrics:      registry,
		Sender:       sender,
		Completer:    completer,
		Deduper:      dedupe.NewRedisDeduper(redisCache, cfg.WebhookDedupeTTL()),
		Generator:    generator,
		Conversation: conversation,
	}

	cleanup := func() {
		if err := redisCache.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis")
		}
	}
	return deps, cleanup, nil
}
