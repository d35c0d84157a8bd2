// Package events fans detected-order events out across engine instances.
//
// In a multi-instance deployment each instance polls the backend, but admins
// may be connected to any of them. Publishing detections over NATS lets every
// instance alert its own connected sessions; events originating from the
// local instance are skipped on receipt to avoid double alerting.
package events

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/tidyhost/engage/internal/backend"
	"github.com/tidyhost/engage/internal/logger"
)

const orderDetectedSubject = "engage.orders.detected"

// OrderEvent is the wire form of a detected order.
type OrderEvent struct {
	EventID    string        `json:"event_id"`
	InstanceID string        `json:"instance_id"`
	Order      backend.Order `json:"order"`
}

// Fanout publishes and subscribes to order-detected events via NATS.
type Fanout struct {
	nc           *nats.Conn
	logger       *logger.Logger
	instanceID   string
	subscription *nats.Subscription
}

// NewFanout creates a fanout service. Returns nil if NATS is not configured,
// in which case callers simply skip fanout.
func NewFanout(nc *nats.Conn, logger *logger.Logger, instanceID string) *Fanout {
	if nc == nil {
		return nil
	}
	return &Fanout{
		nc:         nc,
		logger:     logger.WithComponent("order_fanout"),
		instanceID: instanceID,
	}
}

// PublishOrderDetected broadcasts a detection to the other instances.
// Publish failures are logged only; local alerting has already happened.
func (f *Fanout) PublishOrderDetected(order backend.Order) {
	event := OrderEvent{
		EventID:    uuid.New().String(),
		InstanceID: f.instanceID,
		Order:      order,
	}

	data, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("failed to marshal order event",
			slog.String("error", err.Error()))
		return
	}

	if err := f.nc.Publish(orderDetectedSubject, data); err != nil {
		f.logger.Error("failed to publish order event",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		return
	}

	f.logger.Debug("published order event",
		slog.Int64("order_id", order.ID),
		slog.String("event_id", event.EventID))
}

// SubscribeOrderDetected invokes handler for every detection published by
// other instances.
func (f *Fanout) SubscribeOrderDetected(handler func(order backend.Order)) error {
	sub, err := f.nc.Subscribe(orderDetectedSubject, func(msg *nats.Msg) {
		var event OrderEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			f.logger.Error("failed to unmarshal order event",
				slog.String("error", err.Error()))
			return
		}

		// Skip events we published ourselves.
		if event.InstanceID == f.instanceID {
			return
		}

		f.logger.Info("received remote order event",
			slog.Int64("order_id", event.Order.ID),
			slog.String("from_instance", event.InstanceID))
		handler(event.Order)
	})
	if err != nil {
		return err
	}

	f.subscription = sub
	f.logger.Info("subscribed to order events",
		slog.String("subject", orderDetectedSubject))
	return nil
}

// Close drains the subscription.
func (f *Fanout) Close() {
	if f.subscription != nil {
		if err := f.subscription.Unsubscribe(); err != nil {
			f.logger.Warn("failed to unsubscribe from order events",
				slog.String("error", err.Error()))
		}
		f.subscription = nil
	}
}
