package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderCancelled:
		return TopicOrderCancelled
	default:
		return TopicOrderStatusChanged
	}
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// StatusPayload is the common part of every order event; the projector only needs this.
type StatusPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      Status    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type OrderCreatedPayload struct {
	StatusPayload
	UserID      string          `json:"user_id"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	StatusPayload
	PreviousStatus Status        `json:"previous_status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	TrackingNumber string        `json:"tracking_number,omitempty"`
}

type OrderCancelledPayload struct {
	StatusPayload
	PreviousStatus Status      `json:"previous_status"`
	Reason         string      `json:"reason"`
	Restored       []ItemInput `json:"restored"`
}

// Event is what the manager hands to an EventPublisher after commit.
type Event struct {
	Type       string
	OrderID    string
	OccurredAt time.Time
	Payload    any
}

// EventPublisher delivers committed order events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// StatusCache keeps a fast copy of each order's status. SetStatus must be
// atomic and must not replace an entry whose UpdatedAt is newer than p's, so
// writers racing after commit cannot move the cache backwards.
type StatusCache interface {
	SetStatus(ctx context.Context, p StatusPayload) error
	GetStatus(ctx context.Context, orderID string) (StatusPayload, bool, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

type nopCache struct{}

func (nopCache) SetStatus(context.Context, StatusPayload) error { return nil }

func (nopCache) GetStatus(context.Context, string) (StatusPayload, bool, error) {
	return StatusPayload{}, false, nil
}

func statusOf(o Order) StatusPayload {
	return StatusPayload{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status, UpdatedAt: o.UpdatedAt}
}
