package reply

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"autoreply/core/domain"
	"autoreply/core/port/out"
	"autoreply/core/service/messagelog"
	"autoreply/pkg/apperr"
)

type sentMessage struct {
	to, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
	ctxs []context.Context
}

func (f *fakeSender) Send(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	f.ctxs = append(f.ctxs, ctx)
	return f.err
}

func (f *fakeSender) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type panickingReplies struct{}

func (panickingReplies) Generate(context.Context, string) domain.Reply { panic("classifier exploded") }

func ptr(s string) *string { return &s }

func TestHandleInboundEndToEnd(t *testing.T) {
	log := messagelog.New()
	sender := &fakeSender{}
	ai := &fakeCompleter{answer: "unused"}
	c := NewConversation(log, newTestGenerator(ai, nil), sender, quietLogger())

	err := c.HandleInbound(context.Background(), domain.InboundMessage{From: "whatsapp:+1", Body: ptr("hi")})
	require.NoError(t, err)

	greeting := "Hello 👋! How can I help you today?"
	entries := log.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "whatsapp:+1", entries[0].From)
	assert.Equal(t, "hi", entries[0].Body)
	assert.Equal(t, domain.DirectionInbound, entries[0].Direction())
	assert.Equal(t, "whatsapp:+1", entries[1].To)
	assert.Equal(t, greeting, entries[1].Body)
	assert.Equal(t, domain.DirectionOutbound, entries[1].Direction())

	assert.Equal(t, []sentMessage{{to: "whatsapp:+1", body: greeting}}, sender.Sent())
	assert.Zero(t, ai.Calls())
}

func TestHandleInboundNilBodyIsEmptyText(t *testing.T) {
	log := messagelog.New()
	sender := &fakeSender{}
	c := NewConversation(log, newTestGenerator(&fakeCompleter{answer: "Anything else?"}, nil), sender, quietLogger())

	require.NoError(t, c.HandleInbound(context.Background(), domain.InboundMessage{From: "whatsapp:+2"}))

	entries := log.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[0].Body)
	assert.Equal(t, "Anything else?", entries[1].Body)
}

func TestHandleInboundDispatchFailureKeepsLog(t *testing.T) {
	tests := []struct {
		name   string
		sender out.MessageSender
	}{
		{name: "transport error", sender: &fakeSender{err: errors.New("twilio 500")}},
		{name: "not configured", sender: &fakeSender{err: out.ErrTransportNotConfigured}},
		{name: "no sender", sender: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := messagelog.New()
			c := NewConversation(log, newTestGenerator(nil, nil), tt.sender, quietLogger())

			err := c.HandleInbound(context.Background(), domain.InboundMessage{From: "whatsapp:+3", Body: ptr("price?")})

			assert.NoError(t, err)
			assert.Equal(t, 2, log.Len())
		})
	}
}

func TestHandleInboundSendSurvivesCancelledRequest(t *testing.T) {
	sender := &fakeSender{}
	c := NewConversation(messagelog.New(), newTestGenerator(nil, nil), sender, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.HandleInbound(ctx, domain.InboundMessage{From: "whatsapp:+4", Body: ptr("hello")}))

	require.Len(t, sender.ctxs, 1)
	assert.NoError(t, sender.ctxs[0].Err())
}

func TestHandleInboundRecoversPanic(t *testing.T) {
	log := messagelog.New()
	c := NewConversation(log, panickingReplies{}, &fakeSender{}, quietLogger())

	err := c.HandleInbound(context.Background(), domain.InboundMessage{From: "whatsapp:+5", Body: ptr("hi")})

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInternalError))
	assert.NotContains(t, err.Error(), "classifier exploded")
	assert.Equal(t, 1, log.Len())
}

func TestHandleInboundConcurrent(t *testing.T) {
	const n = 100
	log := messagelog.New()
	sender := &fakeSender{}
	c := NewConversation(log, newTestGenerator(&fakeCompleter{answer: "ok"}, nil), sender, quietLogger())

	var g errgroup.Group
	for i := 0; i < n; i++ {
		from := fmt.Sprintf("whatsapp:+%d", i)
		g.Go(func() error {
			return c.HandleInbound(context.Background(), domain.InboundMessage{From: from, Body: ptr("question")})
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2*n, log.Len())
	assert.Len(t, sender.Sent(), n)
}

func TestSendTest(t *testing.T) {
	log := messagelog.New()
	sender := &fakeSender{}
	c := NewConversation(log, newTestGenerator(nil, nil), sender, quietLogger())

	require.NoError(t, c.SendTest(context.Background(), "whatsapp:+6", "ping"))
	assert.Equal(t, []sentMessage{{to: "whatsapp:+6", body: "ping"}}, sender.Sent())
	assert.Zero(t, log.Len())

	noSender := NewConversation(log, newTestGenerator(nil, nil), nil, quietLogger())
	assert.ErrorIs(t, noSender.SendTest(context.Background(), "x", "y"), out.ErrTransportNotConfigured)
}
