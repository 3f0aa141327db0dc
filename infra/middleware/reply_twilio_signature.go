package middleware

import (
	"github.com/gofiber/fiber/v2"
	twclient "github.com/twilio/twilio-go/client"

	"autoreply/pkg/apperr"
	"autoreply/pkg/logger"
)

// TwilioSignatureHeader carries the provider request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature rejects webhook calls whose signature does not match.
// publicBaseURL, when set, replaces the scheme and host seen by the server,
// which differ from the signed URL behind a proxy.
func TwilioSignature(authToken, publicBaseURL string) fiber.Handler {
	validator := twclient.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		base := publicBaseURL
		if base == "" {
			base = c.BaseURL()
		}
		url := base + c.OriginalURL()

		params := map[string]string{}
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		signature := c.Get(TwilioSignatureHeader)
		if authToken == "" || signature == "" || !validator.Validate(url, params, signature) {
			logger.WithContext(c.UserContext()).
				WithField("url", url).
				Warn("webhook signature mismatch")
			return apperr.Forbidden("invalid webhook signature")
		}
		return c.Next()
	}
}
