package tax

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

var london = NewConfig().Location

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

// at parses "2006-01-02 15:04" in London time.
func at(s string) time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04", s, london)
	if err != nil {
		panic(err)
	}
	return ts
}

func buy(asset, when, quantity, cost string) *Transaction {
	return mustTransaction(NewBuy(TypeBuy, asset, at(when), dec(quantity), dec(cost)))
}

func sell(asset, when, quantity, proceeds string) *Transaction {
	return mustTransaction(NewSell(TypeSell, asset, at(when), dec(quantity), dec(proceeds)))
}

func mustTransaction(t *Transaction, err error) *Transaction {
	if err != nil {
		panic(err)
	}
	return t
}

func capitalGains(events []Event) []*CapitalGains {
	var out []*CapitalGains
	for _, e := range events {
		if cg, ok := e.(*CapitalGains); ok {
			out = append(out, cg)
		}
	}
	return out
}
