// internal/adapter/eventbus/nats.go

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"orcast/internal/domain/lifecycle"
)

// NATSBus publishes lifecycle events on NATS subjects of the form
// <prefix>.<event type>, e.g. orcast.forecast.started.
type NATSBus struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSBus creates a bus on an established connection
func NewNATSBus(conn *nats.Conn, prefix string, logger *zap.Logger) *NATSBus {
	return &NATSBus{
		conn:   conn,
		prefix: prefix,
		logger: logger,
	}
}

// Subject returns the subject an event type is published on
func (b *NATSBus) Subject(t lifecycle.EventType) string {
	return fmt.Sprintf("%s.%s", b.prefix, t)
}

// Publish encodes e as JSON and publishes it
func (b *NATSBus) Publish(ctx context.Context, e lifecycle.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	if err := b.conn.Publish(b.Subject(e.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe receives every event under the prefix
func (b *NATSBus) Subscribe(handler lifecycle.Handler) (func(), error) {
	sub, err := b.conn.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		var e lifecycle.Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			b.logger.Warn("dropping undecodable event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		handler(e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s.>: %w", b.prefix, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			b.logger.Debug("unsubscribe failed", zap.Error(err))
		}
	}, nil
}
