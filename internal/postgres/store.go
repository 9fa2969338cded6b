package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the pgx implementation of orders.Store. Money columns are NUMERIC
// and travel as text so no precision is lost on the way to decimal.Decimal.
type Store struct {
	pool *pgxpool.Pool
}

var _ orders.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}

const productColumns = `id, sku, name, image, unit_price::text, stock_quantity, created_at, updated_at`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Image, &price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return orders.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Product{}, fmt.Errorf("parse unit_price %q: %w", price, err)
	}
	p.UnitPrice = d
	return p, nil
}

func (s *Store) getProduct(ctx context.Context, query, op, productID string) (orders.Product, error) {
	p, err := scanProduct(s.queryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return orders.Product{}, orders.ErrProductNotFound
		}
		return orders.Product{}, persistence(op, err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (orders.Product, error) {
	return s.getProduct(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, "get product", productID)
}

func (s *Store) GetProductForUpdate(ctx context.Context, productID string) (orders.Product, error) {
	return s.getProduct(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, "lock product", productID)
}

// AdjustStock relies on the stock_quantity CHECK constraint as the last line
// against negative stock.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	const stmt = `
UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = NOW()
WHERE id = $1
RETURNING stock_quantity`

	var stock int
	if err := s.queryRow(ctx, stmt, productID, delta).Scan(&stock); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), isInvalidInput(err):
			return 0, orders.ErrProductNotFound
		case isCheckViolation(err):
			return 0, orders.ErrNegativeStock
		}
		return 0, persistence("adjust stock", err)
	}
	return stock, nil
}

func (s *Store) InsertProduct(ctx context.Context, p orders.Product) error {
	const stmt = `
INSERT INTO products (id, sku, name, image, unit_price, stock_quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`

	_, err := s.exec(ctx, stmt, p.ID, p.SKU, p.Name, p.Image, p.UnitPrice.String(), p.StockQuantity, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return orders.ErrDuplicate
		}
		return persistence("insert product", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, persistence("list products", err)
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, persistence("list products", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list products", err)
	}
	return out, nil
}

const orderColumns = `id, order_number, COALESCE(external_id, ''), user_id, line_items, shipping_address,
	payment_method, payment_status, subtotal::text, tax::text, shipping_cost::text, discount::text,
	total_amount::text, status, tracking_number, admin_note, cancel_reason,
	cancelled_at, delivered_at, paid_at, created_at, updated_at`

type lineItemRow struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

func encodeLineItems(items []orders.LineItem) ([]byte, error) {
	rows := make([]lineItemRow, len(items))
	for i, li := range items {
		rows[i] = lineItemRow{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice.String(),
			Quantity:  li.Quantity,
			Image:     li.Image,
		}
	}
	return json.Marshal(rows)
}

func decodeLineItems(raw []byte) ([]orders.LineItem, error) {
	var rows []lineItemRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]orders.LineItem, len(rows))
	for i, r := range rows {
		price, err := decimal.NewFromString(r.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line %d unit_price: %w", i, err)
		}
		out[i] = orders.LineItem{
			ProductID: r.ProductID,
			Name:      r.Name,
			UnitPrice: price,
			Quantity:  r.Quantity,
			Image:     r.Image,
		}
	}
	return out, nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o                                           orders.Order
		items, addr                                 []byte
		payStatus, status                           string
		subtotal, tax, shipping, discount, totalAmt string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ExternalID, &o.UserID, &items, &addr,
		&o.PaymentMethod, &payStatus, &subtotal, &tax, &shipping, &discount,
		&totalAmt, &status, &o.TrackingNumber, &o.AdminNote, &o.CancelReason,
		&o.CancelledAt, &o.DeliveredAt, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return orders.Order{}, err
	}

	if o.LineItems, err = decodeLineItems(items); err != nil {
		return orders.Order{}, fmt.Errorf("decode line_items: %w", err)
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return orders.Order{}, fmt.Errorf("decode shipping_address: %w", err)
	}
	for _, m := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&o.Subtotal, subtotal},
		{&o.Tax, tax},
		{&o.ShippingCost, shipping},
		{&o.Discount, discount},
		{&o.TotalAmount, totalAmt},
	} {
		if *m.dst, err = decimal.NewFromString(m.raw); err != nil {
			return orders.Order{}, fmt.Errorf("parse money %q: %w", m.raw, err)
		}
	}
	o.Status = orders.Status(status)
	o.PaymentStatus = orders.PaymentStatus(payStatus)
	utc(&o.CreatedAt)
	utc(&o.UpdatedAt)
	for _, t := range []*time.Time{o.CancelledAt, o.DeliveredAt, o.PaidAt} {
		if t != nil {
			utc(t)
		}
	}
	return o, nil
}

func utc(t *time.Time) { *t = t.UTC() }

func (s *Store) getOrder(ctx context.Context, query, op, arg string) (orders.Order, error) {
	o, err := scanOrder(s.queryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return orders.Order{}, orders.ErrOrderNotFound
		}
		return orders.Order{}, persistence(op, err)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, "get order", orderID)
}

func (s *Store) GetOrderForUpdate(ctx context.Context, orderID string) (orders.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, "lock order", orderID)
}

func (s *Store) GetOrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id = $1`, "get order by external id", externalID)
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	const stmt = `
INSERT INTO orders (id, order_number, external_id, user_id, line_items, shipping_address,
	payment_method, payment_status, subtotal, tax, shipping_cost, discount, total_amount,
	status, tracking_number, admin_note, cancel_reason, cancelled_at, delivered_at, paid_at,
	created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric,
	$12::numeric, $13::numeric, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	items, err := encodeLineItems(o.LineItems)
	if err != nil {
		return fmt.Errorf("encode line_items: %w", err)
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode shipping_address: %w", err)
	}
	_, err = s.exec(ctx, stmt, o.ID, o.OrderNumber, o.ExternalID, o.UserID, items, addr,
		o.PaymentMethod, string(o.PaymentStatus), o.Subtotal.String(), o.Tax.String(),
		o.ShippingCost.String(), o.Discount.String(), o.TotalAmount.String(),
		string(o.Status), o.TrackingNumber, o.AdminNote, o.CancelReason,
		o.CancelledAt, o.DeliveredAt, o.PaidAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return orders.ErrDuplicate
		}
		return persistence("insert order", err)
	}
	return nil
}

// UpdateOrder writes the mutable lifecycle columns. Line items, money and the
// order number are fixed at creation.
func (s *Store) UpdateOrder(ctx context.Context, o orders.Order) error {
	const stmt = `
UPDATE orders SET
	status = $2, payment_status = $3, tracking_number = $4, admin_note = $5,
	cancel_reason = $6, cancelled_at = $7, delivered_at = $8, paid_at = $9, updated_at = $10
WHERE id = $1`

	tag, err := s.exec(ctx, stmt, o.ID, string(o.Status), string(o.PaymentStatus), o.TrackingNumber,
		o.AdminNote, o.CancelReason, o.CancelledAt, o.DeliveredAt, o.PaidAt, o.UpdatedAt)
	if err != nil {
		if isInvalidInput(err) {
			return orders.ErrOrderNotFound
		}
		return persistence("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	rows, err := s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1
ORDER BY created_at DESC, order_number DESC`, userID)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, persistence("list orders", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list orders", err)
	}
	return out, nil
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *Store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}
