// Package notify delivers customer-facing order notifications. The engine
// treats every call as fire-and-forget; a failed delivery is the caller's
// log line, never its error.
package notify

import "context"

// Message is one outbound notification.
type Message struct {
	To       []string
	From     string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers messages. Implementations can use SMTP, a provider API,
// or a no-op for environments without mail credentials.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NopSender discards every message. Used when mail is not configured.
type NopSender struct{}

func (NopSender) Send(context.Context, *Message) error { return nil }
