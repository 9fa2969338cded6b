package orders

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ariefcatur/shop-orders/internal/clock"
	"github.com/oklog/ulid/v2"
)

// SequenceSource hands out the human-friendly part of order numbers. It does
// not have to be gap-free or even unique; the generator adds entropy.
type SequenceSource interface {
	Next(ctx context.Context) (uint64, error)
}

// NumberGenerator builds PREFIX-YYYYMMDD-SSSSSS-RRRRRRRRRRRRRRRR order
// numbers: UTC day, sequence hint modulo 1e6, and the random section of a
// monotonic ULID. Inside one millisecond the random section strictly
// increases, so concurrent calls cannot collide within a process.
type NumberGenerator struct {
	prefix string
	clock  clock.Clock

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewNumberGenerator(prefix string, clk clock.Clock) *NumberGenerator {
	return newNumberGenerator(prefix, clk, rand.Reader)
}

func newNumberGenerator(prefix string, clk clock.Clock, r io.Reader) *NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "ORD"
	}
	return &NumberGenerator{
		prefix:  prefix,
		clock:   clk,
		entropy: ulid.Monotonic(r, 0),
	}
}

func (g *NumberGenerator) Generate(seq uint64) string {
	now := g.clock.Now()

	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	g.mu.Unlock()
	if err != nil {
		// Monotonic entropy overflowed inside this millisecond or the reader
		// failed; a fresh default-entropy ULID is still unique enough.
		id = ulid.Make()
	}

	// The last 16 characters of a ULID encode its 80 random bits.
	return fmt.Sprintf("%s-%s-%06d-%s", g.prefix, now.Format("20060102"), seq%1_000_000, id.String()[10:])
}
