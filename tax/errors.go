package tax

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned by a Valuer that has no price for an asset.
var ErrNoPrice = errors.New("no price available")

// UnknownRuleError is returned when Match is asked to apply a rule it does not know.
type UnknownRuleError struct {
	Rule Rule
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown matching rule %q", string(e.Rule))
}

// UnsupportedTaxYearError is returned when no annual allowance is configured for a year.
type UnsupportedTaxYearError struct {
	Year int
}

func (e *UnsupportedTaxYearError) Error() string {
	return fmt.Sprintf("unsupported tax year %d: no annual allowance configured", e.Year)
}

// NegativeHoldingsError is returned in strict mode when a sell takes a pool below zero.
type NegativeHoldingsError struct {
	Asset     string
	Quantity  decimal.Decimal
	Timestamp time.Time
}

func (e *NegativeHoldingsError) Error() string {
	return fmt.Sprintf("%s: holdings of %s went negative (%s)",
		e.Timestamp.Format(time.DateOnly), e.Asset, e.Quantity)
}

// InvalidTransactionError is returned when a transaction cannot be constructed.
type InvalidTransactionError struct {
	Side      Side
	Type      Type
	Asset     string
	Timestamp time.Time
	Reason    string
}

func (e *InvalidTransactionError) Error() string {
	if e.Asset == "" {
		return fmt.Sprintf("invalid %s transaction: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid %s transaction of %s: %s", e.Type, e.Asset, e.Reason)
}
