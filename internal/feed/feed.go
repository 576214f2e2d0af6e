// Package feed maintains a streaming reference-price cache. Adapters consult
// it before falling back to REST lookups, keeping the notional check off the
// request path's network budget when the stream is healthy.
package feed

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type entry struct {
	price decimal.Decimal
	ts    time.Time
}

// Cache holds the last traded price per symbol, bounded by a staleness
// window. Entries older than maxAge are treated as absent.
type Cache struct {
	symbols []string
	maxAge  time.Duration
	log     zerolog.Logger

	mu   sync.RWMutex
	last map[string]entry

	now func() time.Time
}

// Option configures Cache construction parameters.
type Option func(*Cache)

const defaultMaxAge = 10 * time.Second

// WithMaxAge overrides the staleness window.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// New constructs a cache tracking the given symbols.
func New(symbols []string, log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		maxAge: defaultMaxAge,
		log:    log,
		last:   make(map[string]entry),
		now:    time.Now,
	}
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			c.symbols = append(c.symbols, sym)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Price returns the cached price if it is fresher than the staleness window.
func (c *Cache) Price(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.last[symbol]
	if !ok || c.now().Sub(e.ts) > c.maxAge {
		return decimal.Decimal{}, false
	}
	return e.price, true
}

func (c *Cache) put(symbol string, price decimal.Decimal, ts time.Time) {
	c.mu.Lock()
	c.last[symbol] = entry{price: price, ts: ts}
	c.mu.Unlock()
}
