// Package projector keeps the order status cache in step with the order
// event topics, so status reads from other instances see committed changes.
package projector

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/shop-orders/internal/kafka"
	"github.com/ariefcatur/shop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deduper claims event ids; Claim returns false for an id already processed.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Service struct {
	Cache  orders.StatusCache
	Dedup  Deduper
	Logger *zap.Logger
}

// HandleEvent is installed as the consumer handler for every order topic.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// A malformed message will never decode; drop it rather than block the partition.
		s.logger().Error("dropping undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderStatusChanged, orders.EventOrderCancelled:
	default:
		return nil
	}

	first, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("claim event %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	if err := s.project(ctx, env); err != nil {
		if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
			s.logger().Warn("release dedup key", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
		return err
	}
	return nil
}

// project relies on SetStatus refusing older writes, so an older event
// delivered after a newer one leaves the cache as is.
func (s *Service) project(ctx context.Context, env orders.Envelope) error {
	st, err := kafkax.UnwrapPayload[orders.StatusPayload](env.Payload)
	if err != nil {
		return err
	}
	if st.OrderID == "" {
		st.OrderID = env.CorrelationID
	}

	if err := s.Cache.SetStatus(ctx, st); err != nil {
		return fmt.Errorf("write cached status: %w", err)
	}
	s.logger().Debug("status projected",
		zap.String("event_id", env.EventID), zap.String("order_id", st.OrderID), zap.String("status", string(st.Status)))
	return nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
