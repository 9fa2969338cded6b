package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/ariefcatur/shop-orders/internal/memstore"
	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/shopspring/decimal"
)

func TestCatalog(t *testing.T) {
	t.Parallel()
	st := memstore.New()
	cat := orders.NewCatalog(st, clock.NewFixed(now), nil, orders.RetryPolicy{})
	ctx := context.Background()

	p, err := cat.CreateProduct(ctx, orders.ProductInput{
		SKU: "TEE-BLK-M", Name: "Black Tee M", UnitPrice: decimal.RequireFromString("19.90"), StockQuantity: 4,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if p.ID == "" || !p.CreatedAt.Equal(now) {
		t.Fatalf("unexpected product %+v", p)
	}

	var ve *orders.ValidationError
	if _, err := cat.CreateProduct(ctx, orders.ProductInput{SKU: "TEE-BLK-M", Name: "dup", UnitPrice: decimal.NewFromInt(1)}); !errors.As(err, &ve) || ve.Field != "sku" {
		t.Fatalf("expected duplicate sku validation error, got %v", err)
	}
	if _, err := cat.CreateProduct(ctx, orders.ProductInput{SKU: "X", Name: "free", UnitPrice: decimal.Zero}); !errors.As(err, &ve) || ve.Field != "unit_price" {
		t.Fatalf("expected unit_price validation error, got %v", err)
	}
	if _, err := cat.CreateProduct(ctx, orders.ProductInput{SKU: "Y", Name: "fraction", UnitPrice: decimal.RequireFromString("19.999")}); !errors.As(err, &ve) || ve.Field != "unit_price" {
		t.Fatalf("expected unit_price scale validation error, got %v", err)
	}

	restocked, err := cat.Restock(ctx, p.ID, 6)
	if err != nil || restocked.StockQuantity != 10 {
		t.Fatalf("expected stock 10, got %+v %v", restocked, err)
	}
	var ise *orders.InsufficientStockError
	if _, err := cat.Restock(ctx, p.ID, -11); !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got := st.Stock(p.ID); got != 10 {
		t.Fatalf("expected stock 10 after refused write-off, got %d", got)
	}
	if _, err := cat.Restock(ctx, "missing", 1); !errors.Is(err, orders.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	list, err := cat.ListProducts(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one product, got %d %v", len(list), err)
	}
	if _, err := cat.GetProduct(ctx, "missing"); !errors.Is(err, orders.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCatalog_RestockRetriesConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()
	cat := orders.NewCatalog(st, clock.NewFixed(now), nil, orders.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	p, err := cat.CreateProduct(ctx, orders.ProductInput{SKU: "CAP", Name: "Cap", UnitPrice: decimal.NewFromInt(5), StockQuantity: 1})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	st.FailOn("commit", &orders.PersistenceError{Op: "commit", Retryable: true, Err: errors.New("serialization failure")}, 2)
	got, err := cat.Restock(ctx, p.ID, 4)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if got.StockQuantity != 5 || st.Stock(p.ID) != 5 {
		t.Fatalf("expected stock 5 applied once, got %d stored %d", got.StockQuantity, st.Stock(p.ID))
	}

	st.FailOn("commit", &orders.PersistenceError{Op: "commit", Retryable: true, Err: errors.New("deadlock")}, 3)
	if _, err := cat.Restock(ctx, p.ID, 1); !orders.IsRetryable(err) {
		t.Fatalf("expected retryable error after exhausting attempts, got %v", err)
	}
	if got := st.Stock(p.ID); got != 5 {
		t.Fatalf("expected stock unchanged after failed restock, got %d", got)
	}
}
