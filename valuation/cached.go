package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robinvdvleuten/cgt/logging"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/shopspring/decimal"
)

// Default cache lifetimes.
const (
	DefaultExpiration = 15 * time.Minute
	CleanupInterval   = 30 * time.Minute
)

// missing marks an asset the wrapped valuer has no price for.
type missing struct{}

// Cached remembers the answers of another valuer, including the absence of
// a price. Other errors are not cached.
type Cached struct {
	valuer tax.Valuer
	cache  *cache.Cache
}

// NewCached wraps valuer with entries that expire after ttl.
func NewCached(valuer tax.Valuer, ttl time.Duration) *Cached {
	return &Cached{
		valuer: valuer,
		cache:  cache.New(ttl, CleanupInterval),
	}
}

func cacheKey(asset string, quantity decimal.Decimal) string {
	return asset + "|" + quantity.String()
}

// Value returns the cached valuation of quantity of asset, asking the
// wrapped valuer on a miss.
func (c *Cached) Value(ctx context.Context, asset string, quantity decimal.Decimal) (tax.Valuation, error) {
	key := cacheKey(asset, quantity)

	if item, ok := c.cache.Get(key); ok {
		switch v := item.(type) {
		case tax.Valuation:
			return v, nil
		case missing:
			return tax.Valuation{}, tax.ErrNoPrice
		}
	}

	v, err := c.valuer.Value(ctx, asset, quantity)
	switch {
	case err == nil:
		c.cache.Set(key, v, cache.DefaultExpiration)
	case errors.Is(err, tax.ErrNoPrice):
		c.cache.Set(key, missing{}, cache.DefaultExpiration)
	default:
		return tax.Valuation{}, err
	}

	logging.FromContext(ctx).Debug("valuation cache miss", "asset", asset, "quantity", quantity.String())
	return v, err
}

// Flush drops every cached valuation.
func (c *Cached) Flush() {
	c.cache.Flush()
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
