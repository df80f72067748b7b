// Package tax matches disposals of assets to acquisitions under the UK
// capital gains rules and buckets the resulting events by tax year.
//
// A calculation runs in fixed stages:
//
//  1. PoolSameDay merges acquisitions, and separately disposals, of one asset on
//     one calendar date.
//  2. Match(SameDay) pairs disposals with acquisitions on the same date.
//  3. Match(BedAndBreakfast) pairs remaining disposals with acquisitions in the
//     30 days that follow them.
//  4. ProcessUnmatched runs everything left through the Section 104 average
//     cost pool of each asset.
//  5. ProcessIncome records mining and income receipts.
//
// Run performs all stages in order.
package tax

import (
	"context"
	"fmt"

	"github.com/robinvdvleuten/cgt/logging"
	"github.com/robinvdvleuten/cgt/telemetry"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Calculator holds the state of one calculation.
type Calculator struct {
	config       *Config
	transactions []*Transaction

	buys   []*Transaction
	sells  []*Transaction
	others []*Transaction

	holdings  map[string]*Holdings
	taxEvents map[int][]Event
}

// New creates a calculator over txns. The transactions are never modified;
// pooling works on copies.
func New(cfg *Config, txns []*Transaction) *Calculator {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Calculator{
		config:       cfg,
		transactions: txns,
		holdings:     make(map[string]*Holdings),
		taxEvents:    make(map[int][]Event),
	}
}

// Config returns the configuration the calculator was created with.
func (c *Calculator) Config() *Config {
	return c.config
}

// Run performs every stage of the calculation in order.
func (c *Calculator) Run(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("tax.run (%d transactions)", len(c.transactions)))
	defer timer.End()

	if err := c.PoolSameDay(ctx); err != nil {
		return err
	}
	for _, rule := range matchingRules {
		if err := c.Match(ctx, rule); err != nil {
			return err
		}
	}
	if err := c.ProcessUnmatched(ctx); err != nil {
		return err
	}
	return c.ProcessIncome(ctx)
}

// PoolSameDay partitions the transactions into pooled buys, pooled sells and
// everything else. Acquisitions, and disposals, sharing an asset and a local
// calendar date are merged into one transaction each.
func (c *Calculator) PoolSameDay(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, "tax.pool")
	defer timer.End()

	buys := make(map[PoolKey]*Transaction)
	sells := make(map[PoolKey]*Transaction)
	c.others = nil

	for _, t := range c.transactions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var pool map[PoolKey]*Transaction
		switch {
		case t.IsAcquisition():
			pool = buys
		case t.IsDisposal():
			pool = sells
		default:
			c.others = append(c.others, t.clone())
			continue
		}

		key := PoolKeyOf(t, c.config.Location)
		if existing, ok := pool[key]; ok {
			pool[key] = Merge(existing, t.clone())
		} else {
			pool[key] = t.clone()
		}
	}

	c.buys = maps.Values(buys)
	c.sells = maps.Values(sells)
	SortTransactions(c.buys)
	SortTransactions(c.sells)

	logging.FromContext(ctx).Debug("pooled same-day transactions",
		"buys", len(c.buys), "sells", len(c.sells), "others", len(c.others))
	return nil
}

// Match pairs unmatched sells with unmatched buys of the same asset under rule.
//
// For each sell the buys are scanned from the start and the first eligible
// one is taken. When quantities differ the larger side is split and the
// remainder is inserted right after it, so a later sell or a later rule can
// still consume it.
func (c *Calculator) Match(ctx context.Context, rule Rule) error {
	if !rule.isMatching() {
		return &UnknownRuleError{Rule: rule}
	}

	timer := telemetry.StartTimer(ctx, "tax.match "+string(rule))
	defer timer.End()

	if len(c.buys) == 0 {
		return nil
	}

	logger := logging.FromContext(ctx)
	matches := 0

	sellIndex, buyIndex := 0, 0
	for sellIndex < len(c.sells) {
		if buyIndex == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		s := c.sells[sellIndex]
		b := c.buys[buyIndex]

		if !s.Matched && !b.Matched && s.Asset == b.Asset && ruleMatches(rule, s.Timestamp, b.Timestamp, c.config.Location) {
			if b.Quantity.GreaterThan(s.Quantity) {
				c.buys = slices.Insert(c.buys, buyIndex+1, b.Split(s.Quantity))
			} else if s.Quantity.GreaterThan(b.Quantity) {
				c.sells = slices.Insert(c.sells, sellIndex+1, s.Split(b.Quantity))
			}

			s.Matched = true
			b.Matched = true

			acquired := b.Timestamp
			event := NewCapitalGains(rule, s.Asset, s.Timestamp, s.Quantity, b.Cost(), s.Proceeds(), &acquired)
			c.addEvent(event)
			matches++

			logger.Debug("matched disposal", "rule", string(rule), "asset", s.Asset,
				"quantity", s.Quantity.String(), "sold", s.Timestamp, "bought", b.Timestamp)

			sellIndex++
			buyIndex = 0
			continue
		}

		buyIndex++
		if buyIndex >= len(c.buys) {
			sellIndex++
			buyIndex = 0
		}
	}

	logger.Debug("matching pass complete", "rule", string(rule), "matches", matches)
	return nil
}

// ProcessUnmatched runs every unmatched transaction through the Section 104
// pool of its asset in (asset, timestamp) order. Disposals drawing on the
// pool produce SECTION_104 events.
//
// Transfers are only correct when no disposal of the same asset falls
// between a withdrawal and its matching deposit; the processing order is the
// only thing that guarantees this.
func (c *Calculator) ProcessUnmatched(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, "tax.section104")
	defer timer.End()

	var unmatched []*Transaction
	for _, list := range [][]*Transaction{c.buys, c.sells, c.others} {
		for _, t := range list {
			if !t.Matched {
				unmatched = append(unmatched, t)
			}
		}
	}
	SortTransactions(unmatched)

	for _, t := range unmatched {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var err error
		switch t.Side {
		case Buy:
			c.addTokens(ctx, t)
		case Sell:
			err = c.subtractTokens(ctx, t)
		default:
			panic(fmt.Sprintf("unexpected transaction side %d", t.Side))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Calculator) addTokens(ctx context.Context, t *Transaction) {
	cost := t.Cost()
	if t.Type == TypeDeposit {
		if !c.config.TransfersInclude {
			return
		}
		cost = decimal.Zero
	}

	h := c.holdingsFor(t.Asset)
	h.AddTokens(t.Quantity, cost)

	logging.FromContext(ctx).Debug("added to pool", "asset", t.Asset, "type", string(t.Type),
		"quantity", t.Quantity.String(), "cost", cost.String())
}

func (c *Calculator) subtractTokens(ctx context.Context, t *Transaction) error {
	if t.Type == TypeWithdrawal && !c.config.TransfersInclude {
		return nil
	}

	h := c.holdingsFor(t.Asset)

	cost := h.CostOf(t.Quantity)
	if t.Type == TypeWithdrawal {
		cost = decimal.Zero
	}
	h.SubtractTokens(t.Quantity, cost)

	logger := logging.FromContext(ctx)
	if h.Quantity.IsNegative() {
		if c.config.StrictHoldings {
			return &NegativeHoldingsError{Asset: t.Asset, Quantity: h.Quantity, Timestamp: t.Timestamp}
		}
		logger.Warn("holdings went negative", "asset", t.Asset,
			"quantity", h.Quantity.String(), "date", t.Timestamp)
	}

	if t.IsDisposal() {
		rounded := cost.Round(c.config.Precision())
		c.addEvent(NewCapitalGains(Section104, t.Asset, t.Timestamp, t.Quantity, rounded, t.Proceeds(), nil))
		logger.Debug("section 104 disposal", "asset", t.Asset,
			"quantity", t.Quantity.String(), "cost", rounded.String())
	}
	return nil
}

// ProcessIncome records an income event for every mining or income
// transaction in the original list.
func (c *Calculator) ProcessIncome(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, "tax.income")
	defer timer.End()

	for _, t := range c.transactions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if t.Side != Buy || !t.Type.IsIncome() {
			continue
		}
		c.addEvent(NewIncome(t.Type, t.Asset, t.Timestamp, t.Quantity, t.Cost()))
	}
	return nil
}

func (c *Calculator) holdingsFor(asset string) *Holdings {
	h, ok := c.holdings[asset]
	if !ok {
		h = NewHoldings(asset)
		c.holdings[asset] = h
	}
	return h
}

func (c *Calculator) addEvent(e Event) {
	year := c.WhichTaxYear(e)
	c.taxEvents[year] = append(c.taxEvents[year], e)
}

// WhichTaxYear returns the tax year of e and makes sure the year has a bucket.
func (c *Calculator) WhichTaxYear(e Event) int {
	year := TaxYear(e.Date(), c.config.Location)
	if _, ok := c.taxEvents[year]; !ok {
		c.taxEvents[year] = []Event{}
	}
	return year
}

// TaxEvents returns the events of every tax year in insertion order.
func (c *Calculator) TaxEvents() map[int][]Event {
	return c.taxEvents
}

// TaxYears returns the years that have events, ascending.
func (c *Calculator) TaxYears() []int {
	years := maps.Keys(c.taxEvents)
	slices.Sort(years)
	return years
}

// Holdings returns the Section 104 pool of every asset seen.
func (c *Calculator) Holdings() map[string]*Holdings {
	return c.holdings
}

// Buys returns the pooled buys, including split remainders, after matching.
func (c *Calculator) Buys() []*Transaction {
	return c.buys
}

// Sells returns the pooled sells, including split remainders, after matching.
func (c *Calculator) Sells() []*Transaction {
	return c.sells
}

// Others returns the transactions that took no part in pooling.
func (c *Calculator) Others() []*Transaction {
	return c.others
}
