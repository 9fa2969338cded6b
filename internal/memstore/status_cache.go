package memstore

import (
	"context"
	"sync"

	"github.com/ariefcatur/shop-orders/internal/orders"
)

// StatusCache is a process-local orders.StatusCache with the same ordering
// rule as the Redis one: older writes are dropped. Entries never expire.
type StatusCache struct {
	mu sync.Mutex
	m  map[string]orders.StatusPayload
}

var _ orders.StatusCache = (*StatusCache)(nil)

func NewStatusCache() *StatusCache {
	return &StatusCache{m: map[string]orders.StatusPayload{}}
}

func (c *StatusCache) SetStatus(_ context.Context, p orders.StatusPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[p.OrderID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return nil
	}
	c.m[p.OrderID] = p
	return nil
}

func (c *StatusCache) GetStatus(_ context.Context, orderID string) (orders.StatusPayload, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.m[orderID]
	return p, ok, nil
}
