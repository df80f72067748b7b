// Package valuation prices holdings for the holdings report.
//
// Static values assets from a fixed unit price table, normally the prices
// section of the config file. Cached wraps any tax.Valuer and remembers its
// answers, which keeps the web server from asking a slow valuer again on
// every request.
package valuation

import (
	"context"
	"strings"

	"github.com/robinvdvleuten/cgt/tax"
	"github.com/shopspring/decimal"
)

// SourceStatic is reported as the data source of Static valuations.
const SourceStatic = "config"

// Static values assets from a unit price table keyed by upper-case symbol.
type Static struct {
	prices map[string]decimal.Decimal
	names  map[string]string
}

// NewStatic creates a valuer over prices. Keys are matched case-insensitively.
func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{
		prices: make(map[string]decimal.Decimal, len(prices)),
		names:  make(map[string]string),
	}
	for asset, price := range prices {
		s.prices[strings.ToUpper(asset)] = price
	}
	return s
}

// WithName sets the display name reported for asset.
func (s *Static) WithName(asset, name string) *Static {
	s.names[strings.ToUpper(asset)] = name
	return s
}

// Value returns price * quantity, or tax.ErrNoPrice for unknown assets.
func (s *Static) Value(ctx context.Context, asset string, quantity decimal.Decimal) (tax.Valuation, error) {
	price, ok := s.prices[strings.ToUpper(asset)]
	if !ok {
		return tax.Valuation{}, tax.ErrNoPrice
	}
	return tax.Valuation{
		Value:  price.Mul(quantity),
		Name:   s.names[strings.ToUpper(asset)],
		Source: SourceStatic,
	}, nil
}
