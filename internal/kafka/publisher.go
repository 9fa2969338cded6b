package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const eventVersion = 1

type messageSink interface {
	Publish(ctx context.Context, m kafka.Message) error
}

// EventPublisher wraps order events in the shared envelope and hands them to
// the async producer.
type EventPublisher struct {
	sink     messageSink
	producer string
	newID    func() string
}

var _ orders.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(p *Producer, producerName string) *EventPublisher {
	return newEventPublisher(p, producerName)
}

func newEventPublisher(sink messageSink, producerName string) *EventPublisher {
	return &EventPublisher{sink: sink, producer: producerName, newID: uuid.NewString}
}

func (p *EventPublisher) Publish(ctx context.Context, ev orders.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}
	env := orders.Envelope{
		EventID:       p.newID(),
		EventType:     ev.Type,
		EventVersion:  eventVersion,
		OccurredAt:    ev.OccurredAt.UTC(),
		Producer:      p.producer,
		CorrelationID: ev.OrderID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return p.sink.Publish(ctx, kafka.Message{
		Topic: orders.TopicFor(ev.Type),
		Key:   orders.PartitionKey(ev.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.Type)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
		},
	})
}
