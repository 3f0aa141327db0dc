package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	// Business
	BusinessName string
	WebsiteURL   string

	// Twilio
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppFrom      string
	TwilioAPIBaseURL        string
	TwilioValidateSignature bool
	PublicBaseURL           string

	// OpenAI
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Redis (optional, webhook dedupe)
	RedisURL            string
	WebhookDedupeTTLSec int

	// Dashboard
	LogWindow int
	StaticDir string

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "4000"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		// Business
		BusinessName: getEnv("BUSINESS_NAME", "Local Business"),
		WebsiteURL:   getEnv("BUSINESS_WEBSITE_URL", "https://example.com"),

		// Twilio
		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:      getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioAPIBaseURL:        getEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),
		TwilioValidateSignature: getEnvBool("TWILIO_VALIDATE_SIGNATURE", false),
		PublicBaseURL:           strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 150),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.4),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 20),

		// Redis
		RedisURL:            getEnv("REDIS_URL", ""),
		WebhookDedupeTTLSec: getEnvInt("WEBHOOK_DEDUPE_TTL_SEC", 300),

		// Dashboard
		LogWindow: getEnvInt("LOG_WINDOW", 200),
		StaticDir: getEnv("STATIC_DIR", "frontend"),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// TwilioConfigured reports whether outbound dispatch has credentials.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

// OpenAIConfigured reports whether the AI fallback has credentials.
func (c *Config) OpenAIConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// LLMTimeout is the per-call deadline for the AI fallback.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSec <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// WebhookDedupeTTL is how long a MessageSid is remembered.
func (c *Config) WebhookDedupeTTL() time.Duration {
	return time.Duration(c.WebhookDedupeTTLSec) * time.Second
}

// Warnings lists missing settings. They are logged at startup and never
// prevent the process from starting.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		warnings = append(warnings, "TWILIO credentials missing. Fill .env from .env.example")
	} else if c.TwilioWhatsAppFrom == "" {
		warnings = append(warnings, "TWILIO_WHATSAPP_FROM missing, outbound replies will not be sent")
	}
	if c.TwilioValidateSignature && c.TwilioAuthToken == "" {
		warnings = append(warnings, "TWILIO_VALIDATE_SIGNATURE is set without TWILIO_AUTH_TOKEN, every webhook will be rejected")
	}
	if c.OpenAIAPIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY missing. Fill .env from .env.example")
	}
	return warnings
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
