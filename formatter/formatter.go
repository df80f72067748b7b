// Package formatter renders calculation results for people.
//
// Text output is a set of aligned tables for terminals and pipes. Markdown
// output can be printed as is, rendered for a terminal with glamour, or
// turned into HTML for the web server.
package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/robinvdvleuten/cgt/output"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/shopspring/decimal"
)

const (
	// DefaultColumnGap is the number of spaces between table columns.
	DefaultColumnGap = 2

	// Unknown is shown for values that could not be determined.
	Unknown = "n/a"
)

// Formatter renders reports.
type Formatter struct {
	// Currency is the ISO code amounts are shown in.
	Currency string

	// Styles colors the output. Nil renders plain text.
	Styles *output.Styles

	// ColumnGap is the spacing between table columns.
	ColumnGap int

	// Location is used to show dates.
	Location *time.Location
}

// Option is a functional option for configuring a Formatter.
type Option func(*Formatter)

// WithCurrency sets the currency amounts are formatted in.
func WithCurrency(code string) Option {
	return func(f *Formatter) {
		f.Currency = code
	}
}

// WithStyles enables terminal styling.
func WithStyles(styles *output.Styles) Option {
	return func(f *Formatter) {
		f.Styles = styles
	}
}

// WithColumnGap sets the spacing between table columns.
func WithColumnGap(gap int) Option {
	return func(f *Formatter) {
		f.ColumnGap = gap
	}
}

// WithLocation sets the zone dates are shown in.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		f.Location = loc
	}
}

// FromConfig returns the options matching cfg.
func FromConfig(cfg *tax.Config) []Option {
	return []Option{WithCurrency(cfg.Currency), WithLocation(cfg.Location)}
}

// New creates a new Formatter with the given options.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		Currency:  tax.DefaultCurrency,
		ColumnGap: DefaultColumnGap,
		Location:  time.UTC,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// currency never returns nil; go-money registers unknown codes on demand.
func (f *Formatter) currency() *money.Currency {
	return money.New(0, f.Currency).Currency()
}

// Money formats amount in the formatter's currency, e.g. "£1,234.56".
func (f *Formatter) Money(amount decimal.Decimal) string {
	cur := f.currency()
	minor := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// NullMoney formats amount, or Unknown when it is not set.
func (f *Formatter) NullMoney(amount decimal.NullDecimal) string {
	if !amount.Valid {
		return Unknown
	}
	return f.Money(amount.Decimal)
}

// Quantity formats an asset quantity without trailing zeros.
func (f *Formatter) Quantity(q decimal.Decimal) string {
	return q.String()
}

// Date formats the calendar date of t.
func (f *Formatter) Date(t time.Time) string {
	return t.In(f.Location).Format(time.DateOnly)
}

func (f *Formatter) style(fn func(*output.Styles, string) string) func(string) string {
	if f.Styles == nil {
		return nil
	}
	return func(s string) string { return fn(f.Styles, s) }
}

func (f *Formatter) gainStyle(value decimal.Decimal) func(string) string {
	if f.Styles == nil {
		return nil
	}
	return func(s string) string { return f.Styles.Gain(s, value) }
}

func (f *Formatter) heading(w io.Writer, title string) error {
	if f.Styles != nil {
		title = f.Styles.Keyword(title)
	}
	_, err := fmt.Fprintf(w, "%s\n\n", title)
	return err
}

// FormatCapitalGains writes the disposals of a tax year and their totals.
func (f *Formatter) FormatCapitalGains(w io.Writer, r *tax.CapitalGainsReport) error {
	if err := f.heading(w, fmt.Sprintf("Capital gains %d/%02d", r.Year-1, r.Year%100)); err != nil {
		return err
	}

	t := newTable(f.ColumnGap, left, left, left, right, right, right, right, left)
	t.header("Date", "Asset", "Rule", "Quantity", "Cost", "Proceeds", "Gain", "Acquired")
	for _, d := range r.Disposals {
		acquired := ""
		if d.AcquisitionDate != nil {
			acquired = f.Date(*d.AcquisitionDate)
		}
		t.row(
			cell{text: f.Date(d.Date())},
			cell{text: d.Asset(), style: f.style((*output.Styles).Asset)},
			cell{text: string(d.Disposal), style: f.style((*output.Styles).Rule)},
			cell{text: f.Quantity(d.Quantity)},
			cell{text: f.Money(d.Cost)},
			cell{text: f.Money(d.Proceeds)},
			cell{text: f.Money(d.Gain), style: f.gainStyle(d.Gain)},
			cell{text: acquired, style: f.style((*output.Styles).Dim)},
		)
	}
	if err := t.write(w); err != nil {
		return err
	}

	summary := newTable(f.ColumnGap, left, right)
	summary.row(cell{text: "Disposals"}, cell{text: fmt.Sprint(r.Count())})
	summary.row(cell{text: "Total cost"}, cell{text: f.Money(r.Cost)})
	summary.row(cell{text: "Total proceeds"}, cell{text: f.Money(r.Proceeds)})
	summary.row(cell{text: "Gains"}, cell{text: f.Money(r.Gains), style: f.gainStyle(r.Gains)})
	summary.row(cell{text: "Losses"}, cell{text: f.Money(r.Losses), style: f.gainStyle(r.Losses)})
	summary.row(cell{text: "Net gain"}, cell{text: f.Money(r.Gain), style: f.gainStyle(r.Gain)})
	summary.row(cell{text: "Annual allowance"}, cell{text: f.Money(r.Allowance)})
	summary.row(cell{text: "Taxable gain"}, cell{text: f.Money(r.TaxableGain)})
	summary.row(
		cell{text: fmt.Sprintf("Estimated tax (%s%%)", r.Rate)},
		cell{text: f.Money(r.EstimatedTax), style: f.style((*output.Styles).Amount)},
	)

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if err := summary.write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// FormatIncome writes the income events of a tax year and their totals.
func (f *Formatter) FormatIncome(w io.Writer, r *tax.IncomeReport) error {
	if err := f.heading(w, fmt.Sprintf("Income %d/%02d", r.Year-1, r.Year%100)); err != nil {
		return err
	}

	t := newTable(f.ColumnGap, left, left, left, right, right)
	t.header("Date", "Asset", "Type", "Quantity", "Amount")
	for _, e := range r.Events {
		t.row(
			cell{text: f.Date(e.Date())},
			cell{text: e.Asset(), style: f.style((*output.Styles).Asset)},
			cell{text: string(e.Type)},
			cell{text: f.Quantity(e.Quantity)},
			cell{text: f.Money(e.Amount)},
		)
	}
	for _, typ := range r.Types() {
		t.row(cell{text: "Total " + string(typ)}, cell{}, cell{}, cell{}, cell{text: f.Money(r.ByType[typ])})
	}
	t.row(
		cell{text: "Total income", style: f.style((*output.Styles).Keyword)},
		cell{}, cell{}, cell{},
		cell{text: f.Money(r.Total), style: f.style((*output.Styles).Amount)},
	)
	if err := t.write(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// FormatHoldings writes the current pools with their market value.
func (f *Formatter) FormatHoldings(w io.Writer, r *tax.HoldingsReport) error {
	if err := f.heading(w, "Holdings"); err != nil {
		return err
	}

	t := newTable(f.ColumnGap, left, left, right, right, right, right, left)
	t.header("Asset", "Name", "Quantity", "Cost", "Value", "Gain", "Source")
	for _, row := range r.Rows {
		gain := row.Gain()
		gainStyle := f.style((*output.Styles).Dim)
		if gain.Valid {
			gainStyle = f.gainStyle(gain.Decimal)
		}
		t.row(
			cell{text: row.Asset, style: f.style((*output.Styles).Asset)},
			cell{text: row.Name},
			cell{text: f.Quantity(row.Quantity)},
			cell{text: f.Money(row.Cost)},
			cell{text: f.NullMoney(row.Value)},
			cell{text: f.NullMoney(gain), style: gainStyle},
			cell{text: row.Source, style: f.style((*output.Styles).Dim)},
		)
	}

	value := f.Money(r.Value)
	if r.Incomplete {
		value += "*"
	}
	t.row(
		cell{text: "Total", style: f.style((*output.Styles).Keyword)},
		cell{}, cell{},
		cell{text: f.Money(r.Cost)},
		cell{text: value, style: f.style((*output.Styles).Amount)},
		cell{}, cell{},
	)
	if err := t.write(w); err != nil {
		return err
	}

	if r.Incomplete {
		note := "* some assets have no price and are not included in the total"
		if f.Styles != nil {
			note = f.Styles.Warning(note)
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", note); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// FormatAudit writes the pooled buys and sells after matching, with the
// originals each pooled entry was merged from, followed by the transactions
// that took no part in pooling.
func (f *Formatter) FormatAudit(w io.Writer, calc *tax.Calculator) error {
	sections := []struct {
		title string
		txns  []*tax.Transaction
	}{
		{"Buys", calc.Buys()},
		{"Sells", calc.Sells()},
		{"Other transactions", calc.Others()},
	}

	for _, section := range sections {
		if err := f.heading(w, section.title); err != nil {
			return err
		}

		t := newTable(f.ColumnGap, left, left, left, right, right, left)
		t.header("Timestamp", "Asset", "Type", "Quantity", "Value", "Status")
		for _, txn := range section.txns {
			status := ""
			if txn.Matched {
				status = "matched"
			}
			t.row(
				cell{text: txn.Timestamp.In(f.Location).Format(time.DateTime)},
				cell{text: txn.Asset, style: f.style((*output.Styles).Asset)},
				cell{text: string(txn.Type)},
				cell{text: f.Quantity(txn.Quantity)},
				cell{text: f.Money(txn.Value)},
				cell{text: status, style: f.style((*output.Styles).Success)},
			)
			for _, p := range txn.Pooled {
				t.row(
					cell{text: "  " + p.Timestamp.In(f.Location).Format(time.DateTime), style: f.style((*output.Styles).Dim)},
					cell{},
					cell{text: string(p.Type), style: f.style((*output.Styles).Dim)},
					cell{text: f.Quantity(p.Quantity), style: f.style((*output.Styles).Dim)},
					cell{text: f.Money(p.Value), style: f.style((*output.Styles).Dim)},
					cell{text: "pooled", style: f.style((*output.Styles).Dim)},
				)
			}
		}
		if err := t.write(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
