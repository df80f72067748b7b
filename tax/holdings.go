package tax

import "github.com/shopspring/decimal"

// Holdings is the Section 104 pool of a single asset: the quantity still held
// and the total cost basis of that quantity.
type Holdings struct {
	Asset    string
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// NewHoldings creates an empty pool for asset.
func NewHoldings(asset string) *Holdings {
	return &Holdings{
		Asset:    asset,
		Quantity: decimal.Zero,
		Cost:     decimal.Zero,
	}
}

// AddTokens adds quantity to the pool at the given cost.
func (h *Holdings) AddTokens(quantity, cost decimal.Decimal) {
	h.Quantity = h.Quantity.Add(quantity)
	h.Cost = h.Cost.Add(cost)
}

// SubtractTokens removes quantity and its share of cost from the pool.
func (h *Holdings) SubtractTokens(quantity, cost decimal.Decimal) {
	h.Quantity = h.Quantity.Sub(quantity)
	h.Cost = h.Cost.Sub(cost)
}

// CostOf returns the average cost of quantity tokens from the pool.
// An empty pool has no cost to allocate and yields zero.
func (h *Holdings) CostOf(quantity decimal.Decimal) decimal.Decimal {
	if h.Quantity.IsZero() {
		return decimal.Zero
	}
	return h.Cost.Mul(quantity).Div(h.Quantity)
}

// IsEmpty reports whether nothing is held.
func (h *Holdings) IsEmpty() bool {
	return h.Quantity.IsZero()
}
