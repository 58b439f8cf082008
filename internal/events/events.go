// Package events broadcasts order lifecycle events over NATS. Consumers
// (analytics, fulfilment) subscribe out of process; publishing is
// best-effort and never blocks an order operation on a slow broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pttech/commerce/internal/domain"
)

// Publisher implements domain.EventPublisher on a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

var _ domain.EventPublisher = (*Publisher)(nil)

// Connect dials the NATS server and returns a publisher. Reconnects are
// handled by the client; publishes during an outage are buffered.
func Connect(url string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Publisher{conn: conn, logger: logger.With().Str("component", "events").Logger()}, nil
}

func (p *Publisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection, flushing buffered publishes.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("failed to drain nats connection")
	}
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
