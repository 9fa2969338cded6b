package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// Entries are hashes of the encoded payload and its UpdatedAt in
// microseconds. A write older than the stored one is dropped.
var setStatusScript = redis.NewScript(`
local ts = redis.call('HGET', KEYS[1], 'ts')
if ts and tonumber(ts) > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'ts', ARGV[2])
redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[3]))
return 1
`)

// StatusCache stores the latest known status of each order under a short TTL.
// It is written after commit by the API and by the projector, so entries are
// only ever a hint; the database stays authoritative.
type StatusCache struct {
	rdb *redis.Client
}

var _ orders.StatusCache = (*StatusCache)(nil)

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

func (c *StatusCache) SetStatus(ctx context.Context, st orders.StatusPayload) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyOrderStatus, st.OrderID)
	err = setStatusScript.Run(ctx, c.rdb, []string{key},
		b, st.UpdatedAt.UnixMicro(), TTLStatusCache.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set cached status: %w", err)
	}
	return nil
}

func (c *StatusCache) GetStatus(ctx context.Context, orderID string) (orders.StatusPayload, bool, error) {
	raw, err := c.rdb.HGet(ctx, fmt.Sprintf(KeyOrderStatus, orderID), "v").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return orders.StatusPayload{}, false, nil
		}
		return orders.StatusPayload{}, false, err
	}
	var st orders.StatusPayload
	if err := json.Unmarshal(raw, &st); err != nil {
		return orders.StatusPayload{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return st, true, nil
}
