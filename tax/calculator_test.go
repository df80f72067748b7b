package tax

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/robinvdvleuten/cgt/logging"
	"github.com/robinvdvleuten/cgt/telemetry"
	"github.com/shopspring/decimal"
)

func run(t *testing.T, cfg *Config, txns ...*Transaction) *Calculator {
	t.Helper()
	calc := New(cfg, txns)
	assert.NoError(t, calc.Run(context.Background()))
	return calc
}

func TestPoolSameDay(t *testing.T) {
	ctx := context.Background()

	t.Run("distinct keys are a no-op", func(t *testing.T) {
		txns := []*Transaction{
			buy("ETH", "2020-01-02 10:00", "1", "10"),
			buy("BTC", "2020-01-03 10:00", "1", "30"),
			buy("BTC", "2020-01-01 10:00", "1", "20"),
			sell("BTC", "2020-01-05 10:00", "1", "40"),
		}
		calc := New(nil, txns)
		assert.NoError(t, calc.PoolSameDay(ctx))

		sorted := []*Transaction{txns[2], txns[1], txns[0]}
		assert.Equal(t, len(sorted), len(calc.Buys()))
		for i, b := range calc.Buys() {
			assert.Equal(t, sorted[i].String(), b.String())
			assert.False(t, b == sorted[i], "pooled entries are copies")
		}
		assert.Equal(t, 1, len(calc.Sells()))
		assert.Equal(t, 0, len(calc.Others()))
	})

	t.Run("order independent", func(t *testing.T) {
		a := buy("BTC", "2020-01-01 09:00", "0.1", "100")
		b := buy("BTC", "2020-01-01 12:00", "0.2", "250")
		c := buy("BTC", "2020-01-01 18:00", "0.3", "275.5")

		first := New(nil, []*Transaction{a, b, c})
		second := New(nil, []*Transaction{c, a, b})
		assert.NoError(t, first.PoolSameDay(ctx))
		assert.NoError(t, second.PoolSameDay(ctx))

		assert.Equal(t, 1, len(first.Buys()))
		assert.Equal(t, first.Buys()[0].String(), second.Buys()[0].String())

		pooled := first.Buys()[0]
		assertDecimal(t, "0.6", pooled.Quantity)
		assertDecimal(t, "625.5", pooled.Cost())
		assert.True(t, pooled.Timestamp.Equal(a.Timestamp))
		assert.Equal(t, 3, len(pooled.Pooled))
	})

	t.Run("others carried through", func(t *testing.T) {
		deposit := mustTransaction(NewBuy(TypeDeposit, "BTC", at("2020-01-01 10:00"), dec("1"), dec("0")))
		withdrawal := mustTransaction(NewSell(TypeWithdrawal, "BTC", at("2020-01-01 11:00"), dec("1"), dec("0")))
		mining := mustTransaction(NewBuy(TypeMining, "BTC", at("2020-01-01 12:00"), dec("1"), dec("5")))

		calc := New(nil, []*Transaction{deposit, withdrawal, mining})
		assert.NoError(t, calc.PoolSameDay(ctx))

		assert.Equal(t, 0, len(calc.Buys()))
		assert.Equal(t, 0, len(calc.Sells()))
		assert.Equal(t, 3, len(calc.Others()))
	})

	t.Run("pools by local date", func(t *testing.T) {
		// 23:30 and 00:30 BST on the same London date straddle midnight UTC
		calc := New(nil, []*Transaction{
			buy("BTC", "2020-06-01 00:30", "1", "10"),
			buy("BTC", "2020-06-01 23:30", "1", "10"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.Equal(t, 1, len(calc.Buys()))
	})
}

func TestMatchSameDay(t *testing.T) {
	ctx := context.Background()

	t.Run("same day wins over later buy", func(t *testing.T) {
		calc := New(nil, []*Transaction{
			buy("BTC", "2020-05-01 10:00", "1", "100"),
			sell("BTC", "2020-05-01 15:00", "1", "150"),
			buy("BTC", "2020-05-11 10:00", "1", "200"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, SameDay))

		assert.True(t, calc.Buys()[0].Matched)
		assert.False(t, calc.Buys()[1].Matched)
		assert.True(t, calc.Sells()[0].Matched)

		events := capitalGains(calc.TaxEvents()[2021])
		assert.Equal(t, 1, len(events))
		assert.Equal(t, SameDay, events[0].Disposal)
		assertDecimal(t, "100", events[0].Cost)
		assertDecimal(t, "50", events[0].Gain)
		assert.True(t, events[0].AcquisitionDate.Equal(at("2020-05-01 10:00")))
	})

	t.Run("larger buy is split", func(t *testing.T) {
		calc := New(nil, []*Transaction{
			buy("BTC", "2020-05-01 10:00", "5", "500"),
			sell("BTC", "2020-05-01 15:00", "2", "300"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, SameDay))

		buys := calc.Buys()
		assert.Equal(t, 2, len(buys))
		assert.True(t, buys[0].Matched)
		assertDecimal(t, "2", buys[0].Quantity)
		assertDecimal(t, "200", buys[0].Cost())
		assert.False(t, buys[1].Matched)
		assertDecimal(t, "3", buys[1].Quantity)
		assertDecimal(t, "300", buys[1].Cost())

		events := capitalGains(calc.TaxEvents()[2021])
		assertDecimal(t, "200", events[0].Cost)
		assertDecimal(t, "100", events[0].Gain)
	})

	t.Run("larger sell is split", func(t *testing.T) {
		calc := New(nil, []*Transaction{
			buy("BTC", "2020-05-01 10:00", "2", "200"),
			sell("BTC", "2020-05-01 15:00", "5", "1000"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, SameDay))

		sells := calc.Sells()
		assert.Equal(t, 2, len(sells))
		assert.True(t, sells[0].Matched)
		assertDecimal(t, "400", sells[0].Proceeds())
		assert.False(t, sells[1].Matched)
		assertDecimal(t, "3", sells[1].Quantity)
		assertDecimal(t, "600", sells[1].Proceeds())
	})

	t.Run("different assets never match", func(t *testing.T) {
		calc := New(nil, []*Transaction{
			buy("ETH", "2020-05-01 10:00", "1", "100"),
			sell("BTC", "2020-05-01 15:00", "1", "150"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, SameDay))
		assert.False(t, calc.Sells()[0].Matched)
	})

	t.Run("no buys is a no-op", func(t *testing.T) {
		calc := New(nil, []*Transaction{sell("BTC", "2020-05-01 15:00", "1", "150")})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, SameDay))
		assert.Equal(t, 0, len(calc.TaxEvents()))
	})
}

func TestMatchBedAndBreakfast(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		bought  string
		matched bool
	}{
		{"same day is not bed and breakfast", "2020-05-01 18:00", false},
		{"day after", "2020-05-02 09:00", true},
		{"exactly 30 days", "2020-05-31 23:59", true},
		{"31 days", "2020-06-01 00:01", false},
		{"before the sale", "2020-04-30 10:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := New(nil, []*Transaction{
				sell("BTC", "2020-05-01 12:00", "1", "150"),
				buy("BTC", tt.bought, "1", "100"),
			})
			assert.NoError(t, calc.PoolSameDay(ctx))
			assert.NoError(t, calc.Match(ctx, BedAndBreakfast))
			assert.Equal(t, tt.matched, calc.Sells()[0].Matched)
		})
	}

	t.Run("earliest eligible buy wins", func(t *testing.T) {
		calc := New(nil, []*Transaction{
			sell("BTC", "2020-05-01 12:00", "1", "150"),
			buy("BTC", "2020-05-10 10:00", "1", "120"),
			buy("BTC", "2020-05-05 10:00", "1", "110"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, BedAndBreakfast))

		events := capitalGains(calc.TaxEvents()[2021])
		assert.Equal(t, 1, len(events))
		assert.Equal(t, BedAndBreakfast, events[0].Disposal)
		assert.True(t, events[0].AcquisitionDate.Equal(at("2020-05-05 10:00")))
		assertDecimal(t, "110", events[0].Cost)
		assert.False(t, calc.Buys()[1].Matched)
	})

	t.Run("continues from same day remainders", func(t *testing.T) {
		calc := New(nil, []*Transaction{
			buy("BTC", "2020-05-01 10:00", "1", "100"),
			sell("BTC", "2020-05-01 15:00", "3", "600"),
			buy("BTC", "2020-05-20 10:00", "2", "300"),
		})
		assert.NoError(t, calc.PoolSameDay(ctx))
		assert.NoError(t, calc.Match(ctx, SameDay))
		assert.NoError(t, calc.Match(ctx, BedAndBreakfast))

		events := capitalGains(calc.TaxEvents()[2021])
		assert.Equal(t, 2, len(events))
		assert.Equal(t, SameDay, events[0].Disposal)
		assert.Equal(t, BedAndBreakfast, events[1].Disposal)
		assertDecimal(t, "2", events[1].Quantity)
		assertDecimal(t, "400", events[1].Proceeds)
		assertDecimal(t, "100", events[1].Gain)
	})
}

func TestMatchUnknownRule(t *testing.T) {
	ctx := context.Background()
	calc := New(nil, []*Transaction{
		buy("BTC", "2020-05-01 10:00", "1", "100"),
		sell("BTC", "2020-05-01 15:00", "1", "150"),
	})
	assert.NoError(t, calc.PoolSameDay(ctx))

	for _, rule := range []Rule{"FIFO", Section104} {
		t.Run(string(rule), func(t *testing.T) {
			err := calc.Match(ctx, rule)
			var unknown *UnknownRuleError
			assert.True(t, errors.As(err, &unknown))
			assert.Equal(t, rule, unknown.Rule)
			assert.False(t, calc.Sells()[0].Matched)
		})
	}

	t.Run("predicate panics", func(t *testing.T) {
		assert.Panics(t, func() {
			ruleMatches("FIFO", at("2020-05-01 10:00"), at("2020-05-01 10:00"), london)
		})
	})
}

func TestSection104(t *testing.T) {
	t.Run("average cost", func(t *testing.T) {
		h := NewHoldings("BTC")
		h.AddTokens(dec("100"), dec("1000"))

		cost := h.CostOf(dec("40"))
		assertDecimal(t, "400", cost)

		h.SubtractTokens(dec("40"), cost)
		assertDecimal(t, "60", h.Quantity)
		assertDecimal(t, "600", h.Cost)
	})

	t.Run("through the pipeline", func(t *testing.T) {
		calc := run(t, nil,
			buy("BTC", "2020-01-01 10:00", "100", "1000"),
			sell("BTC", "2020-03-01 10:00", "40", "600"),
		)

		events := capitalGains(calc.TaxEvents()[2020])
		assert.Equal(t, 1, len(events))
		assert.Equal(t, Section104, events[0].Disposal)
		assert.True(t, events[0].AcquisitionDate == nil)
		assertDecimal(t, "400", events[0].Cost)
		assertDecimal(t, "200", events[0].Gain)

		h := calc.Holdings()["BTC"]
		assertDecimal(t, "60", h.Quantity)
		assertDecimal(t, "600", h.Cost)
	})

	t.Run("event cost is rounded, holdings are not", func(t *testing.T) {
		calc := run(t, nil,
			buy("BTC", "2020-01-01 10:00", "3", "100"),
			sell("BTC", "2020-03-01 10:00", "1", "50"),
		)

		events := capitalGains(calc.TaxEvents()[2020])
		assertDecimal(t, "33.33", events[0].Cost)
		assertDecimal(t, "16.67", events[0].Gain)
		assertDecimal(t, "66.6666666666666667", calc.Holdings()["BTC"].Cost)
	})

	t.Run("empty pool costs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.WithLogger(context.Background(), logging.New(&buf))

		calc := New(nil, []*Transaction{sell("BTC", "2020-03-01 10:00", "1", "50")})
		assert.NoError(t, calc.Run(ctx))

		events := capitalGains(calc.TaxEvents()[2020])
		assertDecimal(t, "0", events[0].Cost)
		assertDecimal(t, "50", events[0].Gain)
		assertDecimal(t, "-1", calc.Holdings()["BTC"].Quantity)
		assert.Contains(t, buf.String(), "holdings went negative")
	})

	t.Run("strict holdings reject negative pools", func(t *testing.T) {
		cfg := NewConfig()
		cfg.StrictHoldings = true

		calc := New(cfg, []*Transaction{
			buy("BTC", "2020-01-01 10:00", "1", "100"),
			sell("BTC", "2020-03-01 10:00", "2", "50"),
		})
		err := calc.Run(context.Background())

		var negative *NegativeHoldingsError
		assert.True(t, errors.As(err, &negative))
		assert.Equal(t, "BTC", negative.Asset)
		assertDecimal(t, "-1", negative.Quantity)
	})
}

func TestTransfers(t *testing.T) {
	deposit := mustTransaction(NewBuy(TypeDeposit, "BTC", at("2020-01-01 10:00"), dec("2"), dec("20000")))
	withdrawal := mustTransaction(NewSell(TypeWithdrawal, "BTC", at("2020-02-01 10:00"), dec("1"), dec("10000")))

	t.Run("excluded", func(t *testing.T) {
		calc := run(t, nil, deposit, withdrawal)
		_, ok := calc.Holdings()["BTC"]
		assert.False(t, ok)
		assert.Equal(t, 0, len(calc.TaxEvents()))
	})

	t.Run("included at zero cost", func(t *testing.T) {
		cfg := NewConfig()
		cfg.TransfersInclude = true

		calc := run(t, cfg, buy("BTC", "2019-12-01 10:00", "1", "5000"), deposit, withdrawal)

		h := calc.Holdings()["BTC"]
		assertDecimal(t, "2", h.Quantity)
		assertDecimal(t, "5000", h.Cost)
		assert.Equal(t, 0, len(calc.TaxEvents()))
	})
}

func TestProcessIncome(t *testing.T) {
	mining := mustTransaction(NewBuy(TypeMining, "BTC", at("2021-05-01 10:00"), dec("0.1"), dec("300")))
	income := mustTransaction(NewBuy(TypeIncome, "ETH", at("2021-06-01 10:00"), dec("2"), dec("50")))

	calc := run(t, nil, mining, income)

	events := calc.TaxEvents()[2022]
	assert.Equal(t, 2, len(events))
	first, ok := events[0].(*Income)
	assert.True(t, ok)
	assert.Equal(t, TypeMining, first.Type)
	assertDecimal(t, "0.1", first.Quantity)
	assertDecimal(t, "300", first.Amount)

	// income enters the pool at its value
	assertDecimal(t, "300", calc.Holdings()["BTC"].Cost)
}

func TestRoundTripConservation(t *testing.T) {
	txns := []*Transaction{
		buy("BTC", "2020-01-01 10:00", "10", "1000"),
		buy("BTC", "2020-02-01 10:00", "10", "1000"),
		sell("BTC", "2020-03-01 10:00", "4", "800"),
		buy("BTC", "2020-03-15 10:00", "5", "500"),
		sell("BTC", "2020-05-01 15:00", "6", "900"),
		buy("BTC", "2020-05-01 09:00", "2", "200"),
	}
	calc := run(t, nil, txns...)

	totalQuantity, totalCost := decimal.Zero, decimal.Zero
	for _, txn := range txns {
		if txn.Side == Buy {
			totalQuantity = totalQuantity.Add(txn.Quantity)
			totalCost = totalCost.Add(txn.Cost())
		}
	}

	quantity, cost := decimal.Zero, decimal.Zero
	rules := map[Rule]int{}
	for _, events := range calc.TaxEvents() {
		for _, e := range capitalGains(events) {
			quantity = quantity.Add(e.Quantity)
			cost = cost.Add(e.Cost)
			rules[e.Disposal]++
		}
	}
	h := calc.Holdings()["BTC"]
	quantity = quantity.Add(h.Quantity)
	cost = cost.Add(h.Cost)

	assert.True(t, totalQuantity.Equal(quantity), "quantity %s != %s", totalQuantity, quantity)
	assert.True(t, totalCost.Equal(cost), "cost %s != %s", totalCost, cost)
	assert.Equal(t, map[Rule]int{SameDay: 1, BedAndBreakfast: 1, Section104: 1}, rules)
	assertDecimal(t, "17", h.Quantity)
}

func TestEndToEnd(t *testing.T) {
	calc := run(t, nil,
		buy("BTC", "2020-01-01 10:00", "1", "1000"),
		sell("BTC", "2020-06-01 10:00", "1", "1500"),
	)

	assert.Equal(t, []int{2021}, calc.TaxYears())
	events := capitalGains(calc.TaxEvents()[2021])
	assert.Equal(t, 1, len(events))
	assert.Equal(t, Section104, events[0].Disposal)
	assertDecimal(t, "500", events[0].Gain)
}

func TestRunInputsUntouched(t *testing.T) {
	b := buy("BTC", "2020-05-01 10:00", "5", "500")
	s := sell("BTC", "2020-05-01 15:00", "2", "300")
	run(t, nil, b, s)

	assert.False(t, b.Matched)
	assert.False(t, s.Matched)
	assertDecimal(t, "5", b.Quantity)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calc := New(nil, []*Transaction{buy("BTC", "2020-01-01 10:00", "1", "1")})
	err := calc.Run(ctx)
	assert.IsError(t, err, context.Canceled)
}

func TestRunTelemetry(t *testing.T) {
	collector := telemetry.NewTimingCollector()
	ctx := telemetry.WithCollector(context.Background(), collector)

	calc := New(nil, []*Transaction{buy("BTC", "2020-01-01 10:00", "1", "1")})
	assert.NoError(t, calc.Run(ctx))

	var names []string
	for _, stage := range collector.Stages() {
		names = append(names, stage.Name)
	}
	assert.Equal(t, []string{
		"tax.run (1 transactions)",
		"tax.pool",
		"tax.match SAME_DAY",
		"tax.match BED_AND_BREAKFAST",
		"tax.section104",
		"tax.income",
	}, names)
}

func TestWhichTaxYear(t *testing.T) {
	calc := New(nil, nil)
	year := calc.WhichTaxYear(NewIncome(TypeIncome, "BTC", at("2020-04-06 00:00"), dec("1"), dec("1")))
	assert.Equal(t, 2021, year)

	events, ok := calc.TaxEvents()[2021]
	assert.True(t, ok)
	assert.Equal(t, 0, len(events))
}
