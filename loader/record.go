package loader

import (
	"errors"
	"strings"
	"time"

	"github.com/robinvdvleuten/cgt/tax"
	"github.com/shopspring/decimal"
)

// record is one transaction as written in a file. Every field is kept as
// text so amounts are parsed exactly.
type record struct {
	Type      string `csv:"type" yaml:"type"`
	Asset     string `csv:"asset" yaml:"asset"`
	Quantity  string `csv:"quantity" yaml:"quantity"`
	Value     string `csv:"value" yaml:"value"`
	Timestamp string `csv:"timestamp" yaml:"timestamp"`
	Wallet    string `csv:"wallet" yaml:"wallet"`
	Note      string `csv:"note" yaml:"note"`
}

// timestampLayouts are tried in order. Layouts without an offset are read
// in the loader's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognised timestamp " + s)
}

func parseAmount(s string, required bool) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		if required {
			return decimal.Zero, errors.New("missing amount")
		}
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// transaction converts r, reporting failures against pos.
func (r *record) transaction(pos Position, loc *time.Location) (*tax.Transaction, error) {
	t, err := tax.ParseType(r.Type)
	if err != nil {
		return nil, &ParseError{Pos: pos, Field: "type", Err: err}
	}
	quantity, err := parseAmount(r.Quantity, true)
	if err != nil {
		return nil, &ParseError{Pos: pos, Field: "quantity", Err: err}
	}
	value, err := parseAmount(r.Value, false)
	if err != nil {
		return nil, &ParseError{Pos: pos, Field: "value", Err: err}
	}
	ts, err := parseTimestamp(r.Timestamp, loc)
	if err != nil {
		return nil, &ParseError{Pos: pos, Field: "timestamp", Err: err}
	}

	asset := strings.ToUpper(strings.TrimSpace(r.Asset))

	var txn *tax.Transaction
	if t.Side() == tax.Buy {
		txn, err = tax.NewBuy(t, asset, ts, quantity, value)
	} else {
		txn, err = tax.NewSell(t, asset, ts, quantity, value)
	}
	if err != nil {
		return nil, &ParseError{Pos: pos, Err: err}
	}

	txn.Wallet = strings.TrimSpace(r.Wallet)
	txn.Note = strings.TrimSpace(r.Note)
	return txn, nil
}
