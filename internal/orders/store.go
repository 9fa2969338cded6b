package orders

import "context"

// TxRunner runs fn inside one all-or-nothing transaction. Store calls made
// with the ctx passed to fn belong to that transaction; a nested WithTx joins
// the outer one. Implementations must make concurrent transactions that touch
// the same product behave as if run one after another.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InventoryStore is the product side of the store used by the ledger.
type InventoryStore interface {
	// GetProductForUpdate reads the product and locks it until the surrounding
	// transaction ends. Returns ErrProductNotFound.
	GetProductForUpdate(ctx context.Context, productID string) (Product, error)
	// AdjustStock adds delta to stock_quantity and returns the new value.
	// Returns ErrProductNotFound or ErrNegativeStock.
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
}

type ProductStore interface {
	InventoryStore
	GetProduct(ctx context.Context, productID string) (Product, error)
	InsertProduct(ctx context.Context, p Product) error
	ListProducts(ctx context.Context) ([]Product, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	// GetOrderForUpdate locks the order row until the transaction ends.
	GetOrderForUpdate(ctx context.Context, orderID string) (Order, error)
	// GetOrderByExternalID returns ErrOrderNotFound when no order carries the key.
	GetOrderByExternalID(ctx context.Context, externalID string) (Order, error)
	// InsertOrder returns ErrDuplicate on an order number or external id clash.
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
}

// Store is everything the lifecycle manager and catalog need.
type Store interface {
	TxRunner
	ProductStore
	OrderStore
}
