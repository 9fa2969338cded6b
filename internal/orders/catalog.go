package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog is the thin product-management surface the order core needs:
// creating products for tests and local runs, and restocking through the
// same locked path as reservation.
type Catalog struct {
	store  Store
	ledger *Ledger
	clock  clock.Clock
	logger *zap.Logger
	retry  RetryPolicy
}

func NewCatalog(store Store, clk clock.Clock, logger *zap.Logger, policy RetryPolicy) *Catalog {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{store: store, ledger: NewLedger(store), clock: clk, logger: logger, retry: policy}
}

type ProductInput struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Image         string          `json:"image"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
}

func (c *Catalog) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	switch {
	case strings.TrimSpace(in.SKU) == "":
		return Product{}, &ValidationError{Field: "sku", Reason: "is required"}
	case strings.TrimSpace(in.Name) == "":
		return Product{}, &ValidationError{Field: "name", Reason: "is required"}
	case !in.UnitPrice.IsPositive():
		return Product{}, &ValidationError{Field: "unit_price", Reason: "must be positive"}
	case !fitsMoneyScale(in.UnitPrice):
		return Product{}, &ValidationError{Field: "unit_price", Reason: "must have at most 2 decimal places"}
	case in.StockQuantity < 0:
		return Product{}, &ValidationError{Field: "stock_quantity", Reason: "must not be negative"}
	}

	now := c.clock.Now()
	p := Product{
		ID:            uuid.NewString(),
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		Image:         in.Image,
		UnitPrice:     in.UnitPrice,
		StockQuantity: in.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.InsertProduct(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Product{}, &ValidationError{Field: "sku", Reason: "already exists"}
		}
		return Product{}, asPersistence("insert product", err)
	}
	c.logger.Info("product created", zap.String("product_id", p.ID), zap.String("sku", p.SKU))
	return p, nil
}

func (c *Catalog) GetProduct(ctx context.Context, productID string) (Product, error) {
	p, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return Product{}, &ProductNotFoundError{ProductID: productID, Line: -1}
		}
		return Product{}, asPersistence("get product", err)
	}
	return p, nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]Product, error) {
	ps, err := c.store.ListProducts(ctx)
	if err != nil {
		return nil, asPersistence("list products", err)
	}
	return ps, nil
}

// Restock adds delta (negative to write off) to the product's stock.
func (c *Catalog) Restock(ctx context.Context, productID string, delta int) (Product, error) {
	if delta == 0 {
		return Product{}, &ValidationError{Field: "delta", Reason: "must not be zero"}
	}
	var out Product
	err := c.retry.run(ctx, c.logger, "restock product", func(ctx context.Context) error {
		return c.store.WithTx(ctx, func(txCtx context.Context) error {
			p, err := c.ledger.Adjust(txCtx, productID, delta)
			if err != nil {
				return err
			}
			out = p
			return nil
		})
	})
	if err != nil {
		return Product{}, err
	}
	c.logger.Info("product restocked",
		zap.String("product_id", productID), zap.Int("delta", delta), zap.Int("stock", out.StockQuantity))
	return out, nil
}
