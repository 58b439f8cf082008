package domain

import "context"

// Notifier delivers customer notifications. Calls are fire-and-forget from
// the engine's point of view: failures are logged, never surfaced.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *Order) error
	ReturnCompleted(ctx context.Context, order *Order) error
	ReturnRejected(ctx context.Context, order *Order) error
}

// Event subjects published by the order engine.
const (
	EventOrderCreated         = "orders.created"
	EventOrderCancelled       = "orders.cancelled"
	EventOrderPaid            = "orders.paid"
	EventOrderReturnCompleted = "orders.return_completed"
)

// EventPublisher broadcasts order lifecycle events to interested consumers
// (analytics, fulfilment). Publishing is best-effort; a failed publish never
// fails the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}
