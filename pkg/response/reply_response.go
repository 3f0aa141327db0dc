// Package response renders the operator API JSON envelopes.
package response

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the body of every failed operator API call.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     ErrorInfo `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// OK writes fields flattened next to "success": true.
func OK(c *fiber.Ctx, fields fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(body)
}

// JSON writes v unchanged with status 200.
func JSON(c *fiber.Ctx, v any) error {
	return c.JSON(v)
}

// Error writes an error envelope.
func Error(c *fiber.Ctx, status int, info ErrorInfo) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(ErrorResponse{
		Success:   false,
		Error:     info,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// XML writes a TwiML document.
func XML(c *fiber.Ctx, status int, body string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextXMLCharsetUTF8)
	return c.Status(status).SendString(body)
}
