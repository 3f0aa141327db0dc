package domain

import "time"

// Direction tells whether a log entry was received or sent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// LogEntry is one immutable record in the message log. Exactly one of From
// (inbound) or To (outbound) is set.
type LogEntry struct {
	Timestamp time.Time
	From      string
	To        string
	Body      string
}

// Direction derives the entry direction from which party is set.
func (e LogEntry) Direction() Direction {
	if e.From != "" || e.To == "" {
		return DirectionInbound
	}
	return DirectionOutbound
}

// InboundEntry builds the log record for a received message.
func InboundEntry(from, body string) LogEntry {
	return LogEntry{From: from, Body: body}
}

// OutboundEntry builds the log record for a reply about to be dispatched.
func OutboundEntry(to, body string) LogEntry {
	return LogEntry{To: to, Body: body}
}

// InboundMessage is a message delivered by the messaging provider webhook.
// Body is nil when the provider omitted it (media-only messages).
type InboundMessage struct {
	From       string
	Body       *string
	MessageSID string
}

// Text returns the normalized body.
func (m InboundMessage) Text() string {
	return NormalizeText(m.Body)
}

// NormalizeText treats absent text as the empty string.
func NormalizeText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
