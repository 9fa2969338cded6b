package projector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/shop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

type memDedup struct{ seen map[string]bool }

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

type memCache struct {
	m      map[string]orders.StatusPayload
	writes int
	setErr error
}

func (c *memCache) SetStatus(_ context.Context, p orders.StatusPayload) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.writes++
	if cur, ok := c.m[p.OrderID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return nil
	}
	c.m[p.OrderID] = p
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id string) (orders.StatusPayload, bool, error) {
	p, ok := c.m[id]
	return p, ok, nil
}

var t0 = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func message(t *testing.T, eventID, eventType string, payload any) kafkago.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(orders.Envelope{EventID: eventID, EventType: eventType, EventVersion: 1, CorrelationID: "o1", Payload: raw})
	if err != nil {
		t.Fatal(err)
	}
	return kafkago.Message{Topic: orders.TopicFor(eventType), Value: b}
}

func newService() (*Service, *memCache, *memDedup) {
	c := &memCache{m: map[string]orders.StatusPayload{}}
	d := &memDedup{seen: map[string]bool{}}
	return &Service{Cache: c, Dedup: d}, c, d
}

func TestHandleEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("projects status and skips duplicates", func(t *testing.T) {
		s, c, _ := newService()
		m := message(t, "e1", orders.EventOrderCreated, orders.OrderCreatedPayload{
			StatusPayload: orders.StatusPayload{OrderID: "o1", OrderNumber: "ORD-1", Status: orders.StatusPending, UpdatedAt: t0},
			UserID:        "u1",
		})
		for i := 0; i < 2; i++ {
			if err := s.HandleEvent(ctx, m); err != nil {
				t.Fatalf("handle: %v", err)
			}
		}
		if c.writes != 1 || c.m["o1"].Status != orders.StatusPending {
			t.Fatalf("expected one write of pending, got %d %+v", c.writes, c.m["o1"])
		}
	})

	t.Run("ignores stale events", func(t *testing.T) {
		s, c, _ := newService()
		newer := orders.OrderCancelledPayload{StatusPayload: orders.StatusPayload{OrderID: "o1", Status: orders.StatusCancelled, UpdatedAt: t0.Add(time.Minute)}}
		older := orders.OrderStatusChangedPayload{StatusPayload: orders.StatusPayload{OrderID: "o1", Status: orders.StatusConfirmed, UpdatedAt: t0}}
		if err := s.HandleEvent(ctx, message(t, "e2", orders.EventOrderCancelled, newer)); err != nil {
			t.Fatal(err)
		}
		if err := s.HandleEvent(ctx, message(t, "e1", orders.EventOrderStatusChanged, older)); err != nil {
			t.Fatal(err)
		}
		if c.m["o1"].Status != orders.StatusCancelled {
			t.Fatalf("stale event overwrote cache: %+v", c.m["o1"])
		}
	})

	t.Run("releases claim when cache write fails", func(t *testing.T) {
		s, c, d := newService()
		c.setErr = errors.New("redis down")
		m := message(t, "e3", orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
			StatusPayload: orders.StatusPayload{OrderID: "o1", Status: orders.StatusShipped, UpdatedAt: t0},
		})
		if err := s.HandleEvent(ctx, m); err == nil {
			t.Fatal("expected error")
		}
		if d.seen["e3"] {
			t.Fatal("expected claim released for redelivery")
		}
		c.setErr = nil
		if err := s.HandleEvent(ctx, m); err != nil || c.m["o1"].Status != orders.StatusShipped {
			t.Fatalf("redelivery not projected: %v %+v", err, c.m["o1"])
		}
	})

	t.Run("drops garbage and unknown types", func(t *testing.T) {
		s, c, _ := newService()
		if err := s.HandleEvent(ctx, kafkago.Message{Value: []byte("{not json")}); err != nil {
			t.Fatalf("expected garbage dropped, got %v", err)
		}
		if err := s.HandleEvent(ctx, message(t, "e4", "StockReserved", map[string]string{})); err != nil {
			t.Fatal(err)
		}
		if c.writes != 0 {
			t.Fatalf("expected no writes, got %d", c.writes)
		}
	})
}
