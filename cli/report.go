package cli

import (
	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/cgt/formatter"
)

type ReportCmd struct {
	Inputs

	Year   int    `help:"Tax year to report, named after the year it ends in (2024 is 2023/24)." short:"y"`
	Format string `help:"Output format (${enum})." enum:"text,markdown,html,pretty" default:"text" short:"f"`
	Width  int    `help:"Word wrap width for pretty output." default:"100"`
}

func (cmd *ReportCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "report")
	if err != nil {
		return err
	}
	defer s.finish()

	calc, err := s.calculate(cmd.Inputs)
	if err != nil {
		return err
	}

	years := calc.TaxYears()
	if len(years) == 0 && cmd.Year == 0 {
		printInfof(ctx.Stdout, "No taxable events found")
		return nil
	}

	year := cmd.Year
	if year == 0 && len(years) > 1 && (cmd.Format == "text" || cmd.Format == "pretty") {
		if year, err = promptYear(years); err != nil {
			return err
		}
	}
	if year != 0 {
		years = []int{year}
	}

	doc := formatter.Document{Title: "Capital gains report"}
	for _, y := range years {
		cg, err := calc.ReportCapitalGains(y)
		if err != nil {
			s.renderError(err, "report failed")
			return NewCommandError(1)
		}
		doc.CapitalGains = append(doc.CapitalGains, cg)
		doc.Income = append(doc.Income, calc.ReportIncome(y))
	}

	return s.write(ctx.Stdout, cmd.Format, cmd.Width, doc)
}
