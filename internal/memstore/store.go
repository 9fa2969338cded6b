// Package memstore is an in-memory orders.Store. Transactions are serialized
// by one mutex and work on a private copy of the data that replaces the
// committed state only when the transaction function succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string][]error
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState(), faults: map[string][]error{}}
}

type state struct {
	products   map[string]orders.Product
	skus       map[string]string
	orders     map[string]orders.Order
	byExternal map[string]string
	byNumber   map[string]string
}

func newState() *state {
	return &state{
		products:   map[string]orders.Product{},
		skus:       map[string]string{},
		orders:     map[string]orders.Order{},
		byExternal: map[string]string{},
		byNumber:   map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.skus {
		c.skus[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.byExternal {
		c.byExternal[k] = v
	}
	for k, v := range s.byNumber {
		c.byNumber[k] = v
	}
	return c
}

type txKey struct{ s *Store }

// WithTx runs fn against a working copy while holding the store lock, so
// transactions are serial. A nested call joins the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{s}).(*state); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{s}, work)); err != nil {
		return err
	}
	if err := s.fault("commit"); err != nil {
		return err
	}
	s.state = work
	return nil
}

// FailOn makes the next times calls of op return err. Ops are the method
// names plus "commit".
func (s *Store) FailOn(op string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < times; i++ {
		s.faults[op] = append(s.faults[op], err)
	}
}

// fault must be called with s.mu held.
func (s *Store) fault(op string) error {
	q := s.faults[op]
	if len(q) == 0 {
		return nil
	}
	s.faults[op] = q[1:]
	return q[0]
}

// with runs fn on the transaction's working copy, or on the committed state
// under the lock when ctx carries no transaction.
func (s *Store) with(ctx context.Context, op string, fn func(st *state) error) error {
	if st, ok := ctx.Value(txKey{s}).(*state); ok {
		// s.mu is held by WithTx for the whole transaction.
		if err := s.fault(op); err != nil {
			return err
		}
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(op); err != nil {
		return err
	}
	return fn(s.state)
}

func (s *Store) GetProduct(ctx context.Context, productID string) (orders.Product, error) {
	var out orders.Product
	err := s.with(ctx, "GetProduct", func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return orders.ErrProductNotFound
		}
		out = p
		return nil
	})
	return out, err
}

// GetProductForUpdate needs no extra locking: the transaction already owns the store.
func (s *Store) GetProductForUpdate(ctx context.Context, productID string) (orders.Product, error) {
	var out orders.Product
	err := s.with(ctx, "GetProductForUpdate", func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return orders.ErrProductNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := s.with(ctx, "AdjustStock", func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return orders.ErrProductNotFound
		}
		if p.StockQuantity+delta < 0 {
			return orders.ErrNegativeStock
		}
		p.StockQuantity += delta
		st.products[productID] = p
		stock = p.StockQuantity
		return nil
	})
	return stock, err
}

func (s *Store) InsertProduct(ctx context.Context, p orders.Product) error {
	return s.with(ctx, "InsertProduct", func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return orders.ErrDuplicate
		}
		if _, ok := st.skus[p.SKU]; ok {
			return orders.ErrDuplicate
		}
		st.products[p.ID] = p
		st.skus[p.SKU] = p.ID
		return nil
	})
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	var out []orders.Product
	err := s.with(ctx, "ListProducts", func(st *state) error {
		for _, p := range st.products {
			out = append(out, p)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
		return nil
	})
	return out, err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	var out orders.Order
	err := s.with(ctx, "GetOrder", func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return orders.ErrOrderNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (s *Store) GetOrderForUpdate(ctx context.Context, orderID string) (orders.Order, error) {
	var out orders.Order
	err := s.with(ctx, "GetOrderForUpdate", func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return orders.ErrOrderNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (s *Store) GetOrderByExternalID(ctx context.Context, externalID string) (orders.Order, error) {
	var out orders.Order
	err := s.with(ctx, "GetOrderByExternalID", func(st *state) error {
		id, ok := st.byExternal[externalID]
		if !ok {
			return orders.ErrOrderNotFound
		}
		out = st.orders[id].Clone()
		return nil
	})
	return out, err
}

func (s *Store) InsertOrder(ctx context.Context, o orders.Order) error {
	return s.with(ctx, "InsertOrder", func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return orders.ErrDuplicate
		}
		if _, ok := st.byNumber[o.OrderNumber]; ok {
			return orders.ErrDuplicate
		}
		if o.ExternalID != "" {
			if _, ok := st.byExternal[o.ExternalID]; ok {
				return orders.ErrDuplicate
			}
			st.byExternal[o.ExternalID] = o.ID
		}
		st.byNumber[o.OrderNumber] = o.ID
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

// UpdateOrder never changes the order number or external id.
func (s *Store) UpdateOrder(ctx context.Context, o orders.Order) error {
	return s.with(ctx, "UpdateOrder", func(st *state) error {
		cur, ok := st.orders[o.ID]
		if !ok {
			return orders.ErrOrderNotFound
		}
		o.OrderNumber = cur.OrderNumber
		o.ExternalID = cur.ExternalID
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	var out []orders.Order
	err := s.with(ctx, "ListOrdersByUser", func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, o.Clone())
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].OrderNumber > out[j].OrderNumber
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return nil
	})
	return out, err
}

// Stock returns the committed stock of a product, or -1 when it does not exist.
func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[productID]
	if !ok {
		return -1
	}
	return p.StockQuantity
}

// OrderCount returns the number of committed orders.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

// SetUnitPrice reprices a committed product in place.
func (s *Store) SetUnitPrice(productID string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.state.products[productID]; ok {
		p.UnitPrice = price
		s.state.products[productID] = p
	}
}
