package orders

import (
	"context"
	"errors"
	"fmt"
)

// Ledger owns every mutation of stock_quantity. Its methods must be called
// with a ctx obtained inside TxRunner.WithTx so the read and the write fall in
// the same transaction.
type Ledger struct {
	store InventoryStore
}

func NewLedger(store InventoryStore) *Ledger {
	return &Ledger{store: store}
}

// Reserve locks the product, checks availability and decrements its stock.
// The returned line is the snapshot stored on the order.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (LineItem, error) {
	if qty <= 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	p, err := l.store.GetProductForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return LineItem{}, &ProductNotFoundError{ProductID: productID, Line: -1}
		}
		return LineItem{}, fmt.Errorf("lock product %s: %w", productID, err)
	}
	if p.StockQuantity < qty {
		return LineItem{}, &InsufficientStockError{
			ProductID: p.ID, Name: p.Name, Line: -1, Requested: qty, Available: p.StockQuantity,
		}
	}
	if _, err := l.store.AdjustStock(ctx, productID, -qty); err != nil {
		if errors.Is(err, ErrNegativeStock) {
			return LineItem{}, &InsufficientStockError{
				ProductID: p.ID, Name: p.Name, Line: -1, Requested: qty, Available: p.StockQuantity,
			}
		}
		return LineItem{}, fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Quantity:  qty,
		Image:     p.Image,
	}, nil
}

// Restore gives qty back to the product. It is not idempotent on its own;
// Cancel guarantees a single call per cancelled order.
func (l *Ledger) Restore(ctx context.Context, productID string, qty int) error {
	if _, err := l.store.AdjustStock(ctx, productID, qty); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return &ProductNotFoundError{ProductID: productID, Line: -1}
		}
		return fmt.Errorf("restore stock %s: %w", productID, err)
	}
	return nil
}

// Adjust is the catalog restocking path. It locks the product like Reserve
// and refuses to drop stock below zero.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int) (Product, error) {
	p, err := l.store.GetProductForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, &ProductNotFoundError{ProductID: productID, Line: -1}
		}
		return Product{}, fmt.Errorf("lock product %s: %w", productID, err)
	}
	if p.StockQuantity+delta < 0 {
		return Product{}, &InsufficientStockError{
			ProductID: p.ID, Name: p.Name, Line: -1, Requested: -delta, Available: p.StockQuantity,
		}
	}
	stock, err := l.store.AdjustStock(ctx, productID, delta)
	if err != nil {
		return Product{}, fmt.Errorf("adjust stock %s: %w", productID, err)
	}
	p.StockQuantity = stock
	return p, nil
}
