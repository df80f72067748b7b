package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/cgt/formatter"
	"github.com/robinvdvleuten/cgt/valuation"
)

type HoldingsCmd struct {
	Inputs

	Price  map[string]string `help:"Unit price of an asset, overriding the configuration (e.g. --price BTC=30000)."`
	Format string            `help:"Output format (${enum})." enum:"text,markdown,html,pretty" default:"text" short:"f"`
	Width  int               `help:"Word wrap width for pretty output." default:"100"`
}

func (cmd *HoldingsCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "holdings")
	if err != nil {
		return err
	}
	defer s.finish()

	for asset, value := range cmd.Price {
		price, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid price for %s: %w", asset, err)
		}
		s.cfg.Prices[strings.ToUpper(asset)] = price
	}

	calc, err := s.calculate(cmd.Inputs)
	if err != nil {
		return err
	}

	valuer := valuation.NewCached(valuation.NewStatic(s.cfg.Prices), valuation.DefaultExpiration)
	report, err := calc.ReportHoldings(s.ctx, valuer)
	if err != nil {
		s.renderError(err, "valuation failed")
		return NewCommandError(1)
	}

	return s.write(ctx.Stdout, cmd.Format, cmd.Width, formatter.Document{
		Title:    "Holdings",
		Holdings: report,
	})
}
