package http

import (
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"autoreply/core/domain"
	"autoreply/core/port/in"
	"autoreply/core/port/out"
	"autoreply/pkg/logger"
	"autoreply/pkg/response"
)

// EmptyTwiML acknowledges a webhook without asking Twilio to send anything;
// replies go out through the REST API instead.
const EmptyTwiML = "<Response></Response>"

type WebhookMetrics struct {
	Received   int64 `json:"received"`
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Rejected   int64 `json:"rejected"`
	Errors     int64 `json:"errors"`
}

type WebhookHandler struct {
	conversation in.ConversationService
	deduper      out.InboundDeduper
	metrics      WebhookMetrics
}

// NewWebhookHandler creates the inbound webhook handler. deduper may be nil.
func NewWebhookHandler(conversation in.ConversationService, deduper out.InboundDeduper) *WebhookHandler {
	return &WebhookHandler{
		conversation: conversation,
		deduper:      deduper,
	}
}

func (h *WebhookHandler) GetMetrics() WebhookMetrics {
	return WebhookMetrics{
		Received:   atomic.LoadInt64(&h.metrics.Received),
		Processed:  atomic.LoadInt64(&h.metrics.Processed),
		Duplicates: atomic.LoadInt64(&h.metrics.Duplicates),
		Rejected:   atomic.LoadInt64(&h.metrics.Rejected),
		Errors:     atomic.LoadInt64(&h.metrics.Errors),
	}
}

// Register mounts the webhook. guards run before the handler (signature
// check, body limit).
func (h *WebhookHandler) Register(app *fiber.App, guards ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, guards...), h.TwilioWebhook)
	app.Post("/webhook/twilio", handlers...)
}

type jsonInbound struct {
	From       string  `json:"from"`
	Body       *string `json:"body"`
	MessageSID string  `json:"messageSid"`
}

// TwilioWebhook handles one inbound message.
func (h *WebhookHandler) TwilioWebhook(c *fiber.Ctx) error {
	atomic.AddInt64(&h.metrics.Received, 1)
	ctx := c.UserContext()
	log := logger.WithContext(ctx)

	msg, ok := parseInbound(c)
	if !ok || msg.From == "" {
		atomic.AddInt64(&h.metrics.Rejected, 1)
		log.Warn("webhook without sender rejected")
		return c.Status(fiber.StatusBadRequest).SendString("Bad Request")
	}

	if h.deduper != nil && msg.MessageSID != "" {
		first, err := h.deduper.FirstSeen(ctx, msg.MessageSID)
		if err != nil {
			log.WithError(err).WithField("message_sid", msg.MessageSID).Warn("dedupe check failed, processing anyway")
		}
		if !first {
			atomic.AddInt64(&h.metrics.Duplicates, 1)
			log.WithField("message_sid", msg.MessageSID).Debug("duplicate webhook delivery skipped")
			return response.XML(c, fiber.StatusOK, EmptyTwiML)
		}
	}

	log.WithFields(map[string]any{
		"from":        msg.From,
		"message_sid": msg.MessageSID,
	}).Info("incoming message")

	if err := h.conversation.HandleInbound(ctx, msg); err != nil {
		atomic.AddInt64(&h.metrics.Errors, 1)
		log.WithError(err).Error("webhook error")
		return c.Status(fiber.StatusInternalServerError).SendString("Error")
	}

	atomic.AddInt64(&h.metrics.Processed, 1)
	return response.XML(c, fiber.StatusOK, EmptyTwiML)
}

// parseInbound reads Twilio form fields, or a JSON body for local testing.
func parseInbound(c *fiber.Ctx) (domain.InboundMessage, bool) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var body jsonInbound
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return domain.InboundMessage{}, false
		}
		return domain.InboundMessage{From: body.From, Body: body.Body, MessageSID: body.MessageSID}, true
	}

	// FormValue aliases the request buffer, which fasthttp reuses.
	msg := domain.InboundMessage{
		From:       utils.CopyString(c.FormValue("From")),
		MessageSID: utils.CopyString(c.FormValue("MessageSid")),
	}
	if args := c.Request().PostArgs(); args.Has("Body") {
		text := string(args.Peek("Body"))
		msg.Body = &text
	}
	return msg, true
}
