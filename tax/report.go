package tax

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/robinvdvleuten/cgt/telemetry"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// CapitalGainsReport summarises the disposals of one tax year.
type CapitalGainsReport struct {
	Year      int
	Disposals []*CapitalGains

	Cost     decimal.Decimal
	Proceeds decimal.Decimal
	Gain     decimal.Decimal
	Gains    decimal.Decimal
	Losses   decimal.Decimal

	Allowance    decimal.Decimal
	TaxableGain  decimal.Decimal
	Rate         decimal.Decimal
	EstimatedTax decimal.Decimal
}

// Count returns the number of disposals.
func (r *CapitalGainsReport) Count() int {
	return len(r.Disposals)
}

// ReportCapitalGains aggregates the disposals of year and estimates the tax
// due on the gain above the annual allowance.
func (c *Calculator) ReportCapitalGains(year int) (*CapitalGainsReport, error) {
	allowance, err := c.config.Allowance(year)
	if err != nil {
		return nil, err
	}

	report := &CapitalGainsReport{
		Year:      year,
		Cost:      decimal.Zero,
		Proceeds:  decimal.Zero,
		Gain:      decimal.Zero,
		Gains:     decimal.Zero,
		Losses:    decimal.Zero,
		Allowance: allowance,
		Rate:      c.config.Rate,
	}

	for _, e := range c.taxEvents[year] {
		cg, ok := e.(*CapitalGains)
		if !ok {
			continue
		}
		report.Disposals = append(report.Disposals, cg)
		report.Cost = report.Cost.Add(cg.Cost)
		report.Proceeds = report.Proceeds.Add(cg.Proceeds)
		report.Gain = report.Gain.Add(cg.Gain)
		if cg.Gain.IsNegative() {
			report.Losses = report.Losses.Add(cg.Gain)
		} else {
			report.Gains = report.Gains.Add(cg.Gain)
		}
	}
	SortEvents(report.Disposals)

	report.TaxableGain = decimal.Max(decimal.Zero, report.Gain.Sub(allowance))
	report.EstimatedTax = report.TaxableGain.Mul(c.config.Rate).Div(decimal.NewFromInt(100))

	return report, nil
}

// IncomeReport summarises the income events of one tax year.
type IncomeReport struct {
	Year   int
	Events []*Income
	ByType map[Type]decimal.Decimal
	Total  decimal.Decimal
}

// Types returns the income types present, sorted.
func (r *IncomeReport) Types() []Type {
	types := maps.Keys(r.ByType)
	slices.Sort(types)
	return types
}

// ReportIncome aggregates the income events of year.
func (c *Calculator) ReportIncome(year int) *IncomeReport {
	report := &IncomeReport{
		Year:   year,
		ByType: make(map[Type]decimal.Decimal),
		Total:  decimal.Zero,
	}

	for _, e := range c.taxEvents[year] {
		income, ok := e.(*Income)
		if !ok {
			continue
		}
		report.Events = append(report.Events, income)
		report.ByType[income.Type] = report.ByType[income.Type].Add(income.Amount)
		report.Total = report.Total.Add(income.Amount)
	}
	SortEvents(report.Events)

	return report
}

// Valuation is the market value of a quantity of an asset.
type Valuation struct {
	Value  decimal.Decimal
	Name   string
	Source string
}

// Valuer prices holdings. Implementations return ErrNoPrice when the asset
// has no known price.
type Valuer interface {
	Value(ctx context.Context, asset string, quantity decimal.Decimal) (Valuation, error)
}

// HoldingsRow is the position in one asset.
type HoldingsRow struct {
	Asset    string
	Name     string
	Source   string
	Quantity decimal.Decimal
	Cost     decimal.Decimal
	Value    decimal.NullDecimal
}

// Gain returns the unrealised gain, if the value is known.
func (r HoldingsRow) Gain() decimal.NullDecimal {
	if !r.Value.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(r.Value.Decimal.Sub(r.Cost))
}

// HoldingsReport lists the current Section 104 pools with their market value.
type HoldingsReport struct {
	Rows       []HoldingsRow
	Cost       decimal.Decimal
	Value      decimal.Decimal
	Incomplete bool
}

// ReportHoldings values every pool through valuer. Empty pools are left out
// unless ShowEmptyWallets is set. Assets the valuer has no price for get an
// unknown value and mark the report incomplete.
func (c *Calculator) ReportHoldings(ctx context.Context, valuer Valuer) (*HoldingsReport, error) {
	timer := telemetry.StartTimer(ctx, "tax.holdings")
	defer timer.End()

	assets := maps.Keys(c.holdings)
	sort.Strings(assets)

	report := &HoldingsReport{
		Cost:  decimal.Zero,
		Value: decimal.Zero,
	}

	for _, asset := range assets {
		h := c.holdings[asset]
		if h.IsEmpty() && !c.config.ShowEmptyWallets {
			continue
		}

		row := HoldingsRow{
			Asset:    asset,
			Quantity: h.Quantity,
			Cost:     h.Cost.Round(c.config.Precision()),
		}

		v, err := valuer.Value(ctx, asset, h.Quantity)
		switch {
		case err == nil:
			row.Value = decimal.NewNullDecimal(v.Value)
			row.Name = v.Name
			row.Source = v.Source
			report.Value = report.Value.Add(v.Value)
		case errors.Is(err, ErrNoPrice):
			report.Incomplete = true
		default:
			return nil, fmt.Errorf("failed to value %s: %w", asset, err)
		}

		report.Cost = report.Cost.Add(row.Cost)
		report.Rows = append(report.Rows, row)
	}

	return report, nil
}
