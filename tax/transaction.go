package tax

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side discriminates the two transaction variants.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Type is the kind of a transaction as recorded by the exchange or wallet.
type Type string

const (
	TypeBuy        Type = "BUY"
	TypeSell       Type = "SELL"
	TypeDeposit    Type = "DEPOSIT"
	TypeWithdrawal Type = "WITHDRAWAL"
	TypeMining     Type = "MINING"
	TypeIncome     Type = "INCOME"
)

// ParseType converts a type name to a Type, ignoring case and surrounding space.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeBuy, TypeSell, TypeDeposit, TypeWithdrawal, TypeMining, TypeIncome:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Side returns the variant a transaction of this type belongs to.
func (t Type) Side() Side {
	switch t {
	case TypeSell, TypeWithdrawal:
		return Sell
	default:
		return Buy
	}
}

// IsIncome reports whether the type produces an income event.
func (t Type) IsIncome() bool {
	return t == TypeMining || t == TypeIncome
}

// IsTransfer reports whether the type moves tokens between wallets.
func (t Type) IsTransfer() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// Transaction is a single buy or sell of an asset.
//
// Value holds the cost for a buy and the proceeds for a sell. Matched is set
// once when a matching rule consumes the transaction, and Pooled records the
// originals a same-day pooled transaction was merged from.
type Transaction struct {
	Side      Side
	Type      Type
	Asset     string
	Timestamp time.Time
	Quantity  decimal.Decimal
	Value     decimal.Decimal
	Wallet    string
	Note      string

	Matched bool
	Pooled  []*Transaction
}

// NewBuy creates a buy-side transaction.
func NewBuy(t Type, asset string, ts time.Time, quantity, cost decimal.Decimal) (*Transaction, error) {
	return newTransaction(Buy, t, asset, ts, quantity, cost)
}

// NewSell creates a sell-side transaction.
func NewSell(t Type, asset string, ts time.Time, quantity, proceeds decimal.Decimal) (*Transaction, error) {
	return newTransaction(Sell, t, asset, ts, quantity, proceeds)
}

func newTransaction(side Side, t Type, asset string, ts time.Time, quantity, value decimal.Decimal) (*Transaction, error) {
	if t.Side() != side {
		return nil, &InvalidTransactionError{Side: side, Type: t, Asset: asset, Timestamp: ts,
			Reason: fmt.Sprintf("type %s is not a %s", t, side)}
	}
	if asset == "" {
		return nil, &InvalidTransactionError{Side: side, Type: t, Timestamp: ts, Reason: "missing asset"}
	}
	if quantity.IsNegative() {
		return nil, &InvalidTransactionError{Side: side, Type: t, Asset: asset, Timestamp: ts,
			Reason: fmt.Sprintf("negative quantity %s", quantity)}
	}
	return &Transaction{
		Side:      side,
		Type:      t,
		Asset:     asset,
		Timestamp: ts,
		Quantity:  quantity,
		Value:     value,
	}, nil
}

// Cost returns the acquisition cost of a buy.
func (t *Transaction) Cost() decimal.Decimal {
	if t.Side != Buy {
		panic(fmt.Sprintf("Cost called on %s transaction", t.Side))
	}
	return t.Value
}

// Proceeds returns the disposal proceeds of a sell.
func (t *Transaction) Proceeds() decimal.Decimal {
	if t.Side != Sell {
		panic(fmt.Sprintf("Proceeds called on %s transaction", t.Side))
	}
	return t.Value
}

// IsAcquisition reports whether a buy takes part in same-day pooling and matching.
func (t *Transaction) IsAcquisition() bool {
	return t.Side == Buy && t.Type == TypeBuy && t.Quantity.IsPositive()
}

// IsDisposal reports whether a sell is a disposal for tax purposes.
func (t *Transaction) IsDisposal() bool {
	return t.Side == Sell && t.Type == TypeSell
}

// Split reduces t to quantity and returns the remainder as a new transaction.
// The value is divided proportionally and the remainder takes whatever is left,
// so both halves always add back up to the original exactly.
func (t *Transaction) Split(quantity decimal.Decimal) *Transaction {
	if quantity.IsNegative() || quantity.GreaterThanOrEqual(t.Quantity) {
		panic(fmt.Sprintf("split quantity %s out of range for %s %s", quantity, t.Quantity, t.Asset))
	}

	value := t.Value.Mul(quantity).Div(t.Quantity)

	rest := t.clone()
	rest.Quantity = t.Quantity.Sub(quantity)
	rest.Value = t.Value.Sub(value)

	t.Quantity = quantity
	t.Value = value

	return rest
}

// Merge combines two same-side transactions of one asset into a new pooled
// transaction. Neither input is modified.
func Merge(a, b *Transaction) *Transaction {
	if a.Side != b.Side || a.Asset != b.Asset {
		panic(fmt.Sprintf("cannot merge %s %s with %s %s", a.Side, a.Asset, b.Side, b.Asset))
	}

	merged := a.clone()
	merged.Quantity = a.Quantity.Add(b.Quantity)
	merged.Value = a.Value.Add(b.Value)
	if b.Timestamp.Before(a.Timestamp) {
		merged.Timestamp = b.Timestamp
	}
	if a.Wallet != b.Wallet {
		merged.Wallet = ""
	}
	merged.Note = ""

	pooled := make([]*Transaction, 0, len(a.Pooled)+len(b.Pooled)+2)
	pooled = append(pooled, a.originals()...)
	pooled = append(pooled, b.originals()...)
	sort.SliceStable(pooled, func(i, j int) bool {
		return pooled[i].Timestamp.Before(pooled[j].Timestamp)
	})
	merged.Pooled = pooled

	return merged
}

func (t *Transaction) originals() []*Transaction {
	if len(t.Pooled) > 0 {
		return t.Pooled
	}
	return []*Transaction{t}
}

func (t *Transaction) clone() *Transaction {
	c := *t
	if t.Pooled != nil {
		c.Pooled = append([]*Transaction(nil), t.Pooled...)
	}
	return &c
}

// Less orders transactions by asset then timestamp, with buys ahead of sells
// at the same instant.
func Less(a, b *Transaction) bool {
	if a.Asset != b.Asset {
		return a.Asset < b.Asset
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Side < b.Side
}

// SortTransactions sorts txns in place using Less.
func SortTransactions(txns []*Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return Less(txns[i], txns[j])
	})
}

// PoolKey groups transactions of one asset on one local calendar date.
type PoolKey struct {
	Asset string
	Date  string
}

// PoolKeyOf returns the pooling key of t with dates taken in loc.
func PoolKeyOf(t *Transaction, loc *time.Location) PoolKey {
	return PoolKey{Asset: t.Asset, Date: t.Timestamp.In(loc).Format(time.DateOnly)}
}

func (t *Transaction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s %s", t.Type, t.Quantity, t.Asset, t.Value, t.Timestamp.Format(time.RFC3339))
	if t.Matched {
		b.WriteString(" (matched)")
	}
	if len(t.Pooled) > 0 {
		fmt.Fprintf(&b, " (pooled %d)", len(t.Pooled))
	}
	return b.String()
}
