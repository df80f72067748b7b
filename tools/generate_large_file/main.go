// Large Transaction File Generator
//
// This tool generates a large CSV transaction file for performance testing and profiling.
// It creates a trading history over several assets with same-day and bed-and-breakfast
// repurchases, mining income and wallet transfers.
//
// Usage:
//
//	go run main.go > large.csv
//	go run main.go 20000000 > large.csv  # Specify target size in bytes
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

const (
	defaultTargetSize = 10 * 1024 * 1024 // 10MB

	// estimated size of one CSV row in bytes
	avgRowSize = 60
)

type asset struct {
	symbol string
	price  float64 // starting unit price in GBP
}

var (
	assets = []asset{
		{"BTC", 7000},
		{"ETH", 150},
		{"ADA", 0.05},
		{"DOT", 3},
		{"SOL", 1},
		{"LINK", 2},
	}

	wallets = []string{"Kraken", "Coinbase", "Binance", "Ledger", "Trezor"}
)

type row struct {
	Type      string `csv:"type"`
	Asset     string `csv:"asset"`
	Quantity  string `csv:"quantity"`
	Value     string `csv:"value"`
	Timestamp string `csv:"timestamp"`
	Wallet    string `csv:"wallet"`
}

type generator struct {
	rng      *rand.Rand
	prices   map[string]float64
	holdings map[string]decimal.Decimal
}

func main() {
	targetSize := defaultTargetSize
	if len(os.Args) > 1 {
		if size, err := strconv.Atoi(os.Args[1]); err == nil {
			targetSize = size
		}
	}

	g := &generator{
		rng:      rand.New(rand.NewSource(1)),
		prices:   map[string]float64{},
		holdings: map[string]decimal.Decimal{},
	}
	for _, a := range assets {
		g.prices[a.symbol] = a.price
	}

	ts := time.Date(2017, time.January, 1, 9, 0, 0, 0, time.UTC)

	var rows []row
	for len(rows)*avgRowSize < targetSize {
		rows = append(rows, g.next(ts)...)
		ts = ts.Add(time.Duration(g.rng.Intn(36)+1) * time.Hour)
	}

	if err := gocsv.Marshal(&rows, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write rows: %v\n", err)
		os.Exit(1)
	}
}

// next returns the rows for one moment in the history. Prices follow a
// random walk so both gains and losses show up.
func (g *generator) next(ts time.Time) []row {
	a := assets[g.rng.Intn(len(assets))]
	g.prices[a.symbol] *= 0.9 + g.rng.Float64()*0.2

	switch n := g.rng.Intn(20); {
	case n < 9:
		return []row{g.trade("BUY", a.symbol, ts, g.quantity(a.symbol))}
	case n < 15:
		return g.sell(a.symbol, ts)
	case n < 17:
		// sell and buy back the same day
		q := g.quantity(a.symbol)
		return []row{
			g.trade("BUY", a.symbol, ts, q),
			g.trade("SELL", a.symbol, ts.Add(time.Hour), q),
			g.trade("BUY", a.symbol, ts.Add(2*time.Hour), q.Div(decimal.NewFromInt(2))),
		}
	case n < 18:
		// buy back within the bed and breakfast window
		rows := g.sell(a.symbol, ts)
		return append(rows, g.trade("BUY", a.symbol, ts.AddDate(0, 0, g.rng.Intn(30)+1), g.quantity(a.symbol)))
	case n < 19:
		return []row{g.trade("MINING", a.symbol, ts, g.quantity(a.symbol).Div(decimal.NewFromInt(10)))}
	default:
		t := g.trade("WITHDRAWAL", a.symbol, ts, g.quantity(a.symbol).Div(decimal.NewFromInt(4)))
		t.Value = ""
		return []row{t}
	}
}

func (g *generator) quantity(symbol string) decimal.Decimal {
	// roughly 10 to 1000 GBP worth
	worth := 10 + g.rng.Float64()*990
	return decimal.NewFromFloat(worth / g.prices[symbol]).Round(8)
}

func (g *generator) sell(symbol string, ts time.Time) []row {
	q := g.holdings[symbol].Mul(decimal.NewFromFloat(g.rng.Float64())).Round(8)
	if !q.IsPositive() {
		q = g.quantity(symbol)
	}
	return []row{g.trade("SELL", symbol, ts, q)}
}

func (g *generator) trade(typ, symbol string, ts time.Time, q decimal.Decimal) row {
	switch typ {
	case "BUY", "MINING":
		g.holdings[symbol] = g.holdings[symbol].Add(q)
	case "SELL", "WITHDRAWAL":
		g.holdings[symbol] = g.holdings[symbol].Sub(q)
	}

	value := q.Mul(decimal.NewFromFloat(g.prices[symbol])).Round(2)
	return row{
		Type:      typ,
		Asset:     symbol,
		Quantity:  q.String(),
		Value:     value.String(),
		Timestamp: ts.Format(time.DateTime),
		Wallet:    wallets[g.rng.Intn(len(wallets))],
	}
}
