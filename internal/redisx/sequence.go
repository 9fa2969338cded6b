package redisx

import (
	"context"
	"fmt"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/ariefcatur/shop-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// The expiry is set only by the call that created the key, so a busy day
// never keeps pushing it forward.
var nextSequenceScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return n
`)

// Sequence is a per-UTC-day counter used as the readable part of order
// numbers.
type Sequence struct {
	rdb   *redis.Client
	clock clock.Clock
}

var _ orders.SequenceSource = (*Sequence)(nil)

func NewSequence(rdb *redis.Client, clk clock.Clock) *Sequence {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Sequence{rdb: rdb, clock: clk}
}

func (s *Sequence) Next(ctx context.Context) (uint64, error) {
	key := fmt.Sprintf(KeyOrderSequence, s.clock.Now().Format("20060102"))
	n, err := nextSequenceScript.Run(ctx, s.rdb, []string{key}, int64(TTLSequence.Seconds())).Int64()
	if err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	return uint64(n), nil
}
