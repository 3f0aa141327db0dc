package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoreply/core/domain"
	"autoreply/core/port/out"
	"autoreply/core/service/classification"
	"autoreply/core/service/intent"
	"autoreply/core/service/messagelog"
	"autoreply/core/service/reply"
	"autoreply/infra/middleware"
	"autoreply/pkg/apperr"
	"autoreply/pkg/logger"
	"autoreply/pkg/metrics"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+body)
	return f.err
}

type fakeCompleter struct {
	answer string
	err    error
}

func (f fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.answer, f.err
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) FirstSeen(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return true, f.err
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

type failingConversation struct{}

func (failingConversation) HandleInbound(context.Context, domain.InboundMessage) error {
	return apperr.Internal("failed to handle inbound message")
}

type testEnv struct {
	app     *fiber.App
	log     *messagelog.Log
	store   *intent.Store
	sender  *fakeSender
	webhook *WebhookHandler
}

func newTestEnv(t *testing.T, ai out.Completer, deduper out.InboundDeduper) *testEnv {
	t.Helper()
	quiet := logger.New(logger.Config{Level: logger.LevelError, Output: &bytes.Buffer{}})
	prev := logger.SetDefault(quiet)
	t.Cleanup(func() { logger.SetDefault(prev) })

	store := intent.NewStore(domain.DefaultIntents())
	log := messagelog.New()
	sender := &fakeSender{}
	reg := metrics.NewRegistry(10)
	gen := reply.NewGenerator(
		classification.NewIntentClassifier(store),
		classification.NewSentimentTagger(),
		ai,
		reply.GeneratorConfig{BusinessName: "Acme", Website: "https://acme.test"},
		reg,
		quiet,
	)
	conv := reply.NewConversation(log, gen, sender, quiet)
	webhook := NewWebhookHandler(conv, deduper)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID(), middleware.Recover())
	webhook.Register(app)
	NewConfigHandler(BusinessInfo{Name: "Acme", Website: "https://acme.test"},
		store, log, gen, conv, 3, reg, webhook).Register(app.Group("/api"))

	return &testEnv{app: app, log: log, store: store, sender: sender, webhook: webhook}
}

func postForm(t *testing.T, app *fiber.App, form url.Values) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header.Get(fiber.HeaderContentType), string(raw)
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getJSON(t *testing.T, app *fiber.App, path string, v any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestTwilioWebhookIntentReply(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, contentType, body := postForm(t, env.app, url.Values{
		"From": {"whatsapp:+1"}, "Body": {"hi"}, "MessageSid": {"SM1"},
	})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, contentType, "text/xml")
	assert.Equal(t, EmptyTwiML, body)
	assert.Equal(t, 2, env.log.Len())
	assert.Equal(t, []string{"whatsapp:+1|Hello 👋! How can I help you today?"}, env.sender.sent)
	assert.Equal(t, int64(1), env.webhook.GetMetrics().Processed)
}

func TestTwilioWebhookLogEntriesKeepSender(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, _, _ := postForm(t, env.app, url.Values{"From": {"whatsapp:+111111"}, "Body": {"hi"}})
	require.Equal(t, fiber.StatusOK, status)
	for i := 0; i < 20; i++ {
		status, _, _ = postForm(t, env.app, url.Values{
			"From": {"whatsapp:+999999"}, "Body": {"hello"}, "MessageSid": {"SM-later"},
		})
		require.Equal(t, fiber.StatusOK, status)
	}

	entries := env.log.All()
	require.Len(t, entries, 42)
	assert.Equal(t, "whatsapp:+111111", entries[0].From)
	assert.Equal(t, "whatsapp:+111111", entries[1].To)
	assert.Equal(t, "hi", entries[0].Body)
}

func TestRegisterDoesNotAliasGuards(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	var calls []string
	guard := func(name string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			calls = append(calls, name)
			return c.Next()
		}
	}

	guards := make([]fiber.Handler, 1, 4)
	guards[0] = guard("first")
	app := fiber.New()
	env.webhook.Register(app, guards...)
	spare := append(guards, guard("second"))

	status, _, _ := postForm(t, app, url.Values{"From": {"whatsapp:+3"}, "Body": {"hi"}})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"first"}, calls)
	assert.Len(t, spare, 2)
}

func TestTwilioWebhookJSONBody(t *testing.T) {
	env := newTestEnv(t, fakeCompleter{answer: "We can help."}, nil)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook/twilio",
		strings.NewReader(`{"from":"whatsapp:+2","body":"do you deliver?"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"whatsapp:+2|We can help."}, env.sender.sent)
}

func TestTwilioWebhookMissingSender(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, _, _ := postForm(t, env.app, url.Values{"Body": {"hi"}})

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Zero(t, env.log.Len())
	assert.Equal(t, int64(1), env.webhook.GetMetrics().Rejected)
}

func TestTwilioWebhookDedupe(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDeduper{seen: map[string]bool{}})
	form := url.Values{"From": {"whatsapp:+1"}, "Body": {"hi"}, "MessageSid": {"SM9"}}

	s1, _, _ := postForm(t, env.app, form)
	s2, _, b2 := postForm(t, env.app, form)

	assert.Equal(t, fiber.StatusOK, s1)
	assert.Equal(t, fiber.StatusOK, s2)
	assert.Equal(t, EmptyTwiML, b2)
	assert.Equal(t, 2, env.log.Len())
	assert.Len(t, env.sender.sent, 1)
	assert.Equal(t, int64(1), env.webhook.GetMetrics().Duplicates)
}

func TestTwilioWebhookDedupeFailsOpen(t *testing.T) {
	env := newTestEnv(t, nil, &fakeDeduper{err: errors.New("redis down")})

	status, _, _ := postForm(t, env.app, url.Values{"From": {"whatsapp:+1"}, "Body": {"hi"}, "MessageSid": {"SM1"}})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, env.sender.sent, 1)
}

func TestTwilioWebhookInternalError(t *testing.T) {
	app := fiber.New()
	h := NewWebhookHandler(failingConversation{}, nil)
	h.Register(app)

	status, _, body := postForm(t, app, url.Values{"From": {"whatsapp:+1"}, "Body": {"hi"}})

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Error", body)
	assert.Equal(t, int64(1), h.GetMetrics().Errors)
}

func TestTwilioWebhookTransportFailureStillAcks(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.sender.err = errors.New("twilio 503")

	status, _, body := postForm(t, env.app, url.Values{"From": {"whatsapp:+1"}, "Body": {"hi"}})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, EmptyTwiML, body)
	assert.Equal(t, 2, env.log.Len())
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	for i := 0; i < 3; i++ {
		postForm(t, env.app, url.Values{"From": {"whatsapp:+1"}, "Body": {"hello"}})
	}

	var body struct {
		BusinessName string          `json:"businessName"`
		Website      string          `json:"website"`
		Intents      []domain.Intent `json:"intents"`
		Logs         []LogEntryDTO   `json:"logs"`
	}
	getJSON(t, env.app, "/api/config", &body)

	assert.Equal(t, "Acme", body.BusinessName)
	assert.Equal(t, "https://acme.test", body.Website)
	assert.Len(t, body.Intents, 4)
	require.Len(t, body.Logs, 3)
	assert.Equal(t, "whatsapp:+1", body.Logs[2].To)
	assert.Positive(t, body.Logs[2].TS)

	var all []LogEntryDTO
	getJSON(t, env.app, "/api/logs", &all)
	assert.Len(t, all, 6)
	assert.Equal(t, "whatsapp:+1", all[0].From)
	assert.Empty(t, all[0].To)
}

func TestReplaceIntents(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, body := postJSON(t, env.app, "/api/config/intents",
		`{"intents":[{"name":"refund","patterns":["refund"],"reply":"Refunds take 5 days."}]}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["intents"], 1)
	require.Len(t, env.store.List(), 1)
	assert.Equal(t, "refund", env.store.List()[0].Name)
}

func TestReplaceIntentsRejectsNonArray(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"object", `{"intents":{"name":"x"}}`},
		{"string", `{"intents":"hello"}`},
		{"missing", `{}`},
		{"null", `{"intents":null}`},
		{"not json", `intents`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)

			status, body := postJSON(t, env.app, "/api/config/intents", tt.body)

			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			errBody, _ := body["error"].(map[string]any)
			assert.Equal(t, apperr.CodeValidationFailed, errBody["code"])
			assert.Equal(t, "intents must be array", errBody["message"])
			assert.Len(t, env.store.List(), 4)
		})
	}
}

func TestSendTest(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, body := postJSON(t, env.app, "/api/send_test", `{"to":"whatsapp:+9","message":"ping"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"whatsapp:+9|ping"}, env.sender.sent)

	status, body = postJSON(t, env.app, "/api/send_test", `{"to":"whatsapp:+9"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	errBody, _ := body["error"].(map[string]any)
	assert.Equal(t, "to and message required", errBody["message"])

	status, body = postJSON(t, env.app, "/api/send_test", `{"to":"whatsapp:+9",`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	errBody, _ = body["error"].(map[string]any)
	assert.Equal(t, apperr.CodeBadRequest, errBody["code"])
	assert.Equal(t, "invalid JSON body", errBody["message"])
	assert.Len(t, env.sender.sent, 1)

	env.sender.err = errors.New("twilio down")
	status, _ = postJSON(t, env.app, "/api/send_test", `{"to":"whatsapp:+9","message":"ping"}`)
	assert.Equal(t, fiber.StatusBadGateway, status)
}

func TestSendTestTransportNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.sender.err = out.ErrTransportNotConfigured

	status, body := postJSON(t, env.app, "/api/send_test", `{"to":"whatsapp:+9","message":"ping"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["sent"])
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, fakeCompleter{err: errors.New("down")}, nil)

	status, body := postJSON(t, env.app, "/api/preview", `{"message":"what is the price?"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "intent", body["source"])
	assert.Equal(t, "price", body["intent"])

	status, body = postJSON(t, env.app, "/api/preview", `{"message":"worst service ever"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "fallback", body["source"])
	assert.Equal(t, "negative", body["sentiment"])
	assert.Equal(t, reply.ApologyText, body["reply"])

	assert.Zero(t, env.log.Len())
	assert.Empty(t, env.sender.sent)
}

func TestGetMetrics(t *testing.T) {
	env := newTestEnv(t, fakeCompleter{answer: "ok"}, nil)
	postForm(t, env.app, url.Values{"From": {"whatsapp:+1"}, "Body": {"do you deliver"}})

	var body struct {
		Webhook WebhookMetrics `json:"webhook"`
		Reply   struct {
			Counters map[string]int64          `json:"counters"`
			Latency  map[string]map[string]any `json:"latency"`
		} `json:"reply"`
	}
	getJSON(t, env.app, "/api/metrics", &body)

	assert.Equal(t, int64(1), body.Webhook.Received)
	assert.Equal(t, int64(1), body.Reply.Counters[reply.MetricAIReply])
	assert.Contains(t, body.Reply.Latency[reply.MetricAICompletion], "p95_ms")
}
