package tax

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a realised tax event: a capital gain or loss, or income.
type Event interface {
	Date() time.Time
	Asset() string
}

type eventBase struct {
	date  time.Time
	asset string
}

func (e eventBase) Date() time.Time { return e.date }
func (e eventBase) Asset() string   { return e.asset }

// CapitalGains is a disposal matched under one of the rules.
// AcquisitionDate is nil for Section 104 disposals, which draw on the pool
// rather than on a single acquisition.
type CapitalGains struct {
	eventBase
	Disposal        Rule
	Quantity        decimal.Decimal
	Cost            decimal.Decimal
	Proceeds        decimal.Decimal
	Gain            decimal.Decimal
	AcquisitionDate *time.Time
}

// NewCapitalGains creates a disposal event; the gain is proceeds minus cost.
func NewCapitalGains(rule Rule, asset string, date time.Time, quantity, cost, proceeds decimal.Decimal, acquired *time.Time) *CapitalGains {
	return &CapitalGains{
		eventBase:       eventBase{date: date, asset: asset},
		Disposal:        rule,
		Quantity:        quantity,
		Cost:            cost,
		Proceeds:        proceeds,
		Gain:            proceeds.Sub(cost),
		AcquisitionDate: acquired,
	}
}

// Income is a mining or income receipt.
type Income struct {
	eventBase
	Type     Type
	Quantity decimal.Decimal
	Amount   decimal.Decimal
}

// NewIncome creates an income event.
func NewIncome(t Type, asset string, date time.Time, quantity, amount decimal.Decimal) *Income {
	return &Income{
		eventBase: eventBase{date: date, asset: asset},
		Type:      t,
		Quantity:  quantity,
		Amount:    amount,
	}
}

// SortEvents orders events by asset then date, keeping insertion order for ties.
func SortEvents[E Event](events []E) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Asset() != events[j].Asset() {
			return events[i].Asset() < events[j].Asset()
		}
		return events[i].Date().Before(events[j].Date())
	})
}
