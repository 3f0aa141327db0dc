// Package twilio implements the messaging port on the Twilio Messages API.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	twiliosdk "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"

	"autoreply/core/port/out"
	"autoreply/pkg/apperr"
	"autoreply/pkg/httputil"
	"autoreply/pkg/resilience"
)

// DefaultBaseURL is the Twilio REST API origin.
const DefaultBaseURL = "https://api.twilio.com"

// Config holds Twilio credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string // e.g. "whatsapp:+14155238886"
	BaseURL    string // origin override, e.g. a local mock
	HTTPClient *http.Client
}

// Configured reports whether every credential needed to send is present.
func (c Config) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// APIError is the REST error answer decoded by the SDK.
type APIError = twclient.TwilioRestError

// retriable reports 5xx and 429 answers.
func retriable(e *APIError) bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Client implements out.MessageSender.
type Client struct {
	cfg  Config
	rest *twiliosdk.RestClient
	cb   *gobreaker.CircuitBreaker
	log  zerolog.Logger
}

var _ out.MessageSender = (*Client)(nil)

// NewClient creates the transport. An unconfigured client is still usable:
// Send returns out.ErrTransportNotConfigured.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httputil.TwilioClient()
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" && base != DefaultBaseURL {
		if origin, err := url.Parse(base); err == nil && origin.Host != "" {
			hc = withOrigin(hc, origin)
		} else {
			log.Warn().Str("base_url", cfg.BaseURL).Msg("invalid twilio base url ignored")
		}
	}

	sdk := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  hc,
	}
	sdk.SetAccountSid(cfg.AccountSID)

	bc := resilience.DefaultBreakerConfig("twilio")
	bc.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return !retriable(apiErr)
		}
		return err == nil
	}

	return &Client{
		cfg:  cfg,
		rest: twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{Client: sdk}),
		cb:   resilience.NewBreaker(bc, log),
		log:  log,
	}
}

// Send posts one message from the configured sender to to.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if !c.cfg.Configured() {
		c.log.Warn().Str("to", to).Msg("twilio config missing, cannot send message")
		return out.ErrTransportNotConfigured
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.create(ctx, to, body)
	})
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}

	if msg, ok := result.(*twapi.ApiV2010Message); ok && msg != nil && msg.Sid != nil {
		c.log.Debug().Str("sid", *msg.Sid).Str("to", to).Msg("message queued")
	}
	return nil
}

type createResult struct {
	msg *twapi.ApiV2010Message
	err error
}

// create runs the SDK call, which takes no context, and stops waiting when
// ctx ends. The request itself is bounded by the HTTP client timeout.
func (c *Client) create(ctx context.Context, to, body string) (*twapi.ApiV2010Message, error) {
	params := &twapi.CreateMessageParams{}
	params.SetPathAccountSid(c.cfg.AccountSID)
	params.SetTo(to)
	params.SetFrom(c.cfg.From)
	params.SetBody(body)

	done := make(chan createResult, 1)
	go func() {
		msg, err := c.rest.Api.CreateMessage(params)
		done <- createResult{msg: msg, err: err}
	}()

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Timeout("twilio send")
		}
		return nil, ctx.Err()
	}
}

// originTransport sends every request to a fixed scheme and host.
type originTransport struct {
	origin *url.URL
	next   http.RoundTripper
}

func (t *originTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.origin.Scheme
	r.URL.Host = t.origin.Host
	r.Host = t.origin.Host
	return t.next.RoundTrip(r)
}

func withOrigin(hc *http.Client, origin *url.URL) *http.Client {
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	cp := *hc
	cp.Transport = &originTransport{origin: origin, next: next}
	return &cp
}
