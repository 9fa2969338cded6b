package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/shopspring/decimal"
)

func seed(t *testing.T, s *Store, id string, stock int) {
	t.Helper()
	err := s.InsertProduct(context.Background(), orders.Product{
		ID: id, SKU: "sku-" + id, Name: "Product " + id, UnitPrice: decimal.NewFromInt(10), StockQuantity: stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := New()
	seed(t, s, "p1", 5)

	boom := errors.New("boom")
	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		if _, err := s.AdjustStock(ctx, "p1", -3); err != nil {
			return err
		}
		if err := s.InsertOrder(ctx, orders.Order{ID: "o1", OrderNumber: "N1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := s.Stock("p1"); got != 5 {
		t.Fatalf("expected stock 5 after rollback, got %d", got)
	}
	if n := s.OrderCount(); n != 0 {
		t.Fatalf("expected no orders after rollback, got %d", n)
	}
}

func TestWithTx_CommitFault(t *testing.T) {
	t.Parallel()
	s := New()
	seed(t, s, "p1", 5)

	conflict := &orders.PersistenceError{Op: "commit", Retryable: true, Err: errors.New("conflict")}
	s.FailOn("commit", conflict, 1)

	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := s.AdjustStock(ctx, "p1", -1)
		return err
	})
	if !orders.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if got := s.Stock("p1"); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}

	if err := s.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := s.AdjustStock(ctx, "p1", -1)
		return err
	}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if got := s.Stock("p1"); got != 4 {
		t.Fatalf("expected stock 4, got %d", got)
	}
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	t.Parallel()
	s := New()
	seed(t, s, "p1", 5)

	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		if err := s.WithTx(ctx, func(inner context.Context) error {
			_, err := s.AdjustStock(inner, "p1", -2)
			return err
		}); err != nil {
			return err
		}
		p, err := s.GetProductForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		if p.StockQuantity != 3 {
			t.Errorf("expected outer tx to see 3, got %d", p.StockQuantity)
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected abort")
	}
	if got := s.Stock("p1"); got != 5 {
		t.Fatalf("expected nested write rolled back, got %d", got)
	}
}

func TestAdjustStock_RefusesNegative(t *testing.T) {
	t.Parallel()
	s := New()
	seed(t, s, "p1", 2)

	if _, err := s.AdjustStock(context.Background(), "p1", -3); !errors.Is(err, orders.ErrNegativeStock) {
		t.Fatalf("expected ErrNegativeStock, got %v", err)
	}
	if _, err := s.AdjustStock(context.Background(), "missing", 1); !errors.Is(err, orders.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestInsertOrder_UniqueKeys(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.InsertOrder(ctx, orders.Order{ID: "o1", OrderNumber: "N1", ExternalID: "ext-1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cases := []orders.Order{
		{ID: "o1", OrderNumber: "N2"},
		{ID: "o2", OrderNumber: "N1"},
		{ID: "o3", OrderNumber: "N3", ExternalID: "ext-1"},
	}
	for _, o := range cases {
		if err := s.InsertOrder(ctx, o); !errors.Is(err, orders.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for %+v, got %v", o, err)
		}
	}
	got, err := s.GetOrderByExternalID(ctx, "ext-1")
	if err != nil || got.ID != "o1" {
		t.Fatalf("expected o1 by external id, got %+v %v", got, err)
	}
}

func TestWithTx_SerializesReadModifyWrite(t *testing.T) {
	t.Parallel()
	s := New()
	seed(t, s, "p1", 0)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(context.Background(), func(ctx context.Context) error {
				p, err := s.GetProductForUpdate(ctx, "p1")
				if err != nil {
					return err
				}
				mu.Lock()
				seen[p.StockQuantity] = true
				mu.Unlock()
				_, err = s.AdjustStock(ctx, "p1", 1)
				return err
			})
		}()
	}
	wg.Wait()

	if got := s.Stock("p1"); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if len(seen) != 100 {
		t.Fatalf("expected every transaction to read a distinct stock value, got %d distinct", len(seen))
	}
}

func TestStatusCache_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	c := NewStatusCache()
	t0 := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	_ = c.SetStatus(ctx, orders.StatusPayload{OrderID: "o1", Status: orders.StatusDelivered, UpdatedAt: t0.Add(time.Second)})
	_ = c.SetStatus(ctx, orders.StatusPayload{OrderID: "o1", Status: orders.StatusShipped, UpdatedAt: t0})

	got, ok, _ := c.GetStatus(ctx, "o1")
	if !ok || got.Status != orders.StatusDelivered {
		t.Fatalf("expected delivered to survive an older write, got ok=%v %+v", ok, got)
	}
	if _, ok, _ := c.GetStatus(ctx, "o2"); ok {
		t.Fatal("expected miss for unknown order")
	}
}
