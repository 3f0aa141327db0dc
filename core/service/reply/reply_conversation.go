package reply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoreply/core/domain"
	"autoreply/core/port/in"
	"autoreply/core/port/out"
	"autoreply/pkg/apperr"
	"autoreply/pkg/logger"
)

const defaultSendTimeout = 15 * time.Second

// MessageLog is the append side of the message log.
type MessageLog interface {
	Append(entry domain.LogEntry) domain.LogEntry
}

// Conversation runs the inbound pipeline: log, reply, log, dispatch.
type Conversation struct {
	log         MessageLog
	replies     in.ReplyService
	sender      out.MessageSender
	sendTimeout time.Duration
	logger      *logger.Logger
}

// NewConversation creates the handler. sender may be nil, in which case
// dispatch is skipped with a warning.
func NewConversation(log MessageLog, replies in.ReplyService, sender out.MessageSender, l *logger.Logger) *Conversation {
	if l == nil {
		l = logger.Default()
	}
	return &Conversation{
		log:         log,
		replies:     replies,
		sender:      sender,
		sendTimeout: defaultSendTimeout,
		logger:      l.WithField("component", "conversation"),
	}
}

// HandleInbound processes one message. Dispatch failures are logged and
// swallowed; the two log entries are kept regardless. Only an unexpected
// panic is reported, as an internal error without detail.
func (c *Conversation) HandleInbound(ctx context.Context, msg domain.InboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithContext(ctx).
				WithField("from", msg.From).
				WithError(fmt.Errorf("%v", r)).
				Error("inbound handling panicked")
			err = apperr.Internal("failed to handle inbound message")
		}
	}()

	text := msg.Text()
	c.log.Append(domain.InboundEntry(msg.From, text))

	reply := c.replies.Generate(ctx, text)
	c.log.Append(domain.OutboundEntry(msg.From, reply.Text))

	c.dispatch(ctx, msg.From, reply)
	return nil
}

// SendTest delivers an operator test message. It is not recorded in the
// message log.
func (c *Conversation) SendTest(ctx context.Context, to, body string) error {
	if c.sender == nil {
		return out.ErrTransportNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	return c.sender.Send(ctx, to, body)
}

func (c *Conversation) dispatch(ctx context.Context, to string, reply domain.Reply) {
	l := c.logger.WithContext(ctx).WithFields(map[string]any{
		"to":     to,
		"source": string(reply.Source),
	})
	if c.sender == nil {
		l.Warn("messaging transport not configured, reply not sent")
		return
	}

	// The webhook is acknowledged after dispatch starts; a client disconnect
	// must not abort the send.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sendTimeout)
	defer cancel()

	start := time.Now()
	err := c.sender.Send(sendCtx, to, reply.Text)
	switch {
	case errors.Is(err, out.ErrTransportNotConfigured):
		l.Warn("messaging transport not configured, reply not sent")
	case err != nil:
		l.WithError(err).WithDuration(time.Since(start)).Error("reply dispatch failed")
	default:
		l.WithDuration(time.Since(start)).Info("reply sent")
	}
}
