package http

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"autoreply/core/domain"
	"autoreply/core/port/in"
	"autoreply/core/port/out"
	"autoreply/pkg/apperr"
	"autoreply/pkg/logger"
	"autoreply/pkg/metrics"
	"autoreply/pkg/response"
)

// BusinessInfo is the identity shown on the dashboard.
type BusinessInfo struct {
	Name    string
	Website string
}

type ConfigHandler struct {
	business  BusinessInfo
	intents   in.IntentService
	messages  in.MessageLogReader
	replies   in.ReplyService
	sender    in.TestMessageService
	logWindow int
	registry  *metrics.Registry
	webhook   *WebhookHandler
}

func NewConfigHandler(
	business BusinessInfo,
	intents in.IntentService,
	messages in.MessageLogReader,
	replies in.ReplyService,
	sender in.TestMessageService,
	logWindow int,
	registry *metrics.Registry,
	webhook *WebhookHandler,
) *ConfigHandler {
	if logWindow <= 0 {
		logWindow = 200
	}
	return &ConfigHandler{
		business:  business,
		intents:   intents,
		messages:  messages,
		replies:   replies,
		sender:    sender,
		logWindow: logWindow,
		registry:  registry,
		webhook:   webhook,
	}
}

func (h *ConfigHandler) Register(router fiber.Router) {
	router.Get("/config", h.GetConfig)
	router.Post("/config/intents", h.ReplaceIntents)
	router.Get("/logs", h.GetLogs)
	router.Post("/send_test", h.SendTest)
	router.Post("/preview", h.Preview)
	router.Get("/metrics", h.GetMetrics)
}

// LogEntryDTO is the wire form of a message log entry.
type LogEntryDTO struct {
	TS   int64  `json:"ts"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Body string `json:"body"`
}

func toLogDTOs(entries []domain.LogEntry) []LogEntryDTO {
	dtos := make([]LogEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LogEntryDTO{TS: e.Timestamp.UnixMilli(), From: e.From, To: e.To, Body: e.Body}
	}
	return dtos
}

func (h *ConfigHandler) GetConfig(c *fiber.Ctx) error {
	return response.JSON(c, fiber.Map{
		"businessName": h.business.Name,
		"website":      h.business.Website,
		"intents":      h.intents.List(),
		"logs":         toLogDTOs(h.messages.Recent(h.logWindow)),
	})
}

type replaceIntentsRequest struct {
	Intents json.RawMessage `json:"intents"`
}

func (h *ConfigHandler) ReplaceIntents(c *fiber.Ctx) error {
	var req replaceIntentsRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperr.ValidationFailed("intents must be array")
	}

	intents, err := h.intents.ReplaceAllJSON(req.Intents)
	if err != nil {
		return err
	}

	logger.WithContext(c.UserContext()).WithField("count", len(intents)).Info("intents replaced")
	return response.OK(c, fiber.Map{"intents": intents})
}

func (h *ConfigHandler) GetLogs(c *fiber.Ctx) error {
	return response.JSON(c, toLogDTOs(h.messages.All()))
}

type sendTestRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (h *ConfigHandler) SendTest(c *fiber.Ctx) error {
	var req sendTestRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperr.BadRequest("invalid JSON body")
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || req.Message == "" {
		return apperr.ValidationFailed("to and message required")
	}

	err := h.sender.SendTest(c.UserContext(), req.To, req.Message)
	switch {
	case errors.Is(err, out.ErrTransportNotConfigured):
		return response.OK(c, fiber.Map{"sent": false, "warning": "messaging transport not configured"})
	case err != nil:
		return apperr.ExternalError("twilio", err)
	}
	return response.OK(c, fiber.Map{"sent": true})
}

type previewRequest struct {
	Message string `json:"message"`
}

// Preview runs reply generation without logging or dispatch.
func (h *ConfigHandler) Preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperr.BadRequest("invalid JSON body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperr.ValidationFailed("message required")
	}

	r := h.replies.Generate(c.UserContext(), req.Message)
	return response.JSON(c, fiber.Map{
		"reply":     r.Text,
		"source":    r.Source,
		"intent":    r.Intent,
		"sentiment": r.Sentiment,
	})
}

func (h *ConfigHandler) GetMetrics(c *fiber.Ctx) error {
	body := fiber.Map{"reply": h.registry.Snapshot()}
	if h.webhook != nil {
		body["webhook"] = h.webhook.GetMetrics()
	}
	return response.JSON(c, body)
}
