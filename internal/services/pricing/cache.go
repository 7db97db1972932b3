package pricing

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/louisbranch/papertrade.space/internal/platform/money"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = time.Minute
)

// Cache memoizes quotes for a short period so portfolio valuations and
// repeated commands do not hammer the upstream API.
type Cache struct {
	quoter Quoter
	lru    *expirable.LRU[string, money.Amount]
}

// NewCache wraps quoter with an expiring LRU. Non-positive size or ttl fall
// back to defaults.
func NewCache(quoter Quoter, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		quoter: quoter,
		lru:    expirable.NewLRU[string, money.Amount](size, nil, ttl),
	}
}

// Quote returns a cached price or resolves and caches a fresh one.
func (c *Cache) Quote(ctx context.Context, name string) (money.Amount, error) {
	if price, ok := c.lru.Get(name); ok {
		return price, nil
	}
	price, err := c.quoter.Quote(ctx, name)
	if err != nil {
		return 0, err
	}
	c.lru.Add(name, price)
	return price, nil
}

// Quotes resolves prices for several securities, using cached entries where
// they are still fresh.
func (c *Cache) Quotes(ctx context.Context, names []string) (map[string]money.Amount, error) {
	quotes := make(map[string]money.Amount, len(names))
	var missing []string
	for _, name := range names {
		if price, ok := c.lru.Get(name); ok {
			quotes[name] = price
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		fresh, err := c.quoter.Quotes(ctx, missing)
		if err != nil {
			return nil, err
		}
		for name, price := range fresh {
			c.lru.Add(name, price)
			quotes[name] = price
		}
	}
	return quotes, nil
}

var _ Quoter = (*Cache)(nil)
