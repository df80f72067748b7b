package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"

	"github.com/robinvdvleuten/cgt/tax"
)

// DoctorCmd provides doctor utilities for debugging transaction files.
type DoctorCmd struct {
	Pool   PoolCmd   `cmd:"" help:"Dump the transactions after same-day pooling."`
	Config ConfigCmd `cmd:"" help:"Dump the effective configuration."`
}

// PoolCmd dumps the pooled partitions the matching rules work on.
type PoolCmd struct {
	Inputs

	Matched bool `help:"Run the matching rules before dumping."`
}

type poolEntry struct {
	Timestamp string
	Asset     string
	Type      string
	Quantity  string
	Value     string
	Matched   bool
	Pooled    []string
}

func dumpEntries(txns []*tax.Transaction, loc *time.Location) []poolEntry {
	entries := make([]poolEntry, 0, len(txns))
	for _, t := range txns {
		entry := poolEntry{
			Timestamp: t.Timestamp.In(loc).Format(time.DateTime),
			Asset:     t.Asset,
			Type:      string(t.Type),
			Quantity:  t.Quantity.String(),
			Value:     t.Value.String(),
			Matched:   t.Matched,
		}
		for _, p := range t.Pooled {
			entry.Pooled = append(entry.Pooled, p.String())
		}
		entries = append(entries, entry)
	}
	return entries
}

// Run executes the pool command.
func (cmd *PoolCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "doctor pool")
	if err != nil {
		return err
	}
	defer s.finish()

	txns, err := s.load(cmd.Inputs)
	if err != nil {
		s.renderError(err, "failed to load transactions")
		return NewCommandError(1)
	}

	calc := tax.New(s.cfg, txns)
	if cmd.Matched {
		err = calc.Run(s.ctx)
	} else {
		err = calc.PoolSameDay(s.ctx)
	}
	if err != nil {
		s.renderError(err, "calculation failed")
		return NewCommandError(1)
	}

	loc := s.cfg.Location
	partitions := []struct {
		name string
		txns []*tax.Transaction
	}{
		{"buys", calc.Buys()},
		{"sells", calc.Sells()},
		{"others", calc.Others()},
	}
	for _, p := range partitions {
		_, _ = fmt.Fprintf(ctx.Stdout, "%s = %s\n", p.name, repr.String(dumpEntries(p.txns, loc), repr.Indent("  ")))
	}
	return nil
}

// ConfigCmd dumps the configuration after files and flags are applied.
type ConfigCmd struct{}

type configDump struct {
	Location         string
	Currency         string
	Symbol           string
	Precision        int32
	TransfersInclude bool
	ShowEmptyWallets bool
	StrictHoldings   bool
	Debug            bool
	Rate             string
	Allowances       []string
	Prices           map[string]string
}

// Run executes the config command.
func (cmd *ConfigCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "doctor config")
	if err != nil {
		return err
	}
	defer s.finish()

	cfg := s.cfg
	dump := configDump{
		Location:         cfg.Location.String(),
		Currency:         cfg.Currency,
		Symbol:           cfg.Symbol(),
		Precision:        cfg.Precision(),
		TransfersInclude: cfg.TransfersInclude,
		ShowEmptyWallets: cfg.ShowEmptyWallets,
		StrictHoldings:   cfg.StrictHoldings,
		Debug:            cfg.Debug,
		Rate:             cfg.Rate.String(),
		Prices:           map[string]string{},
	}

	years := make([]int, 0, len(cfg.Allowances))
	for year := range cfg.Allowances {
		years = append(years, year)
	}
	sort.Ints(years)
	for _, year := range years {
		dump.Allowances = append(dump.Allowances, fmt.Sprintf("%d/%02d: %s", year-1, year%100, cfg.Allowances[year]))
	}
	for asset, price := range cfg.Prices {
		dump.Prices[asset] = price.String()
	}

	_, _ = fmt.Fprintln(ctx.Stdout, repr.String(dump, repr.Indent("  ")))
	return nil
}
