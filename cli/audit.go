package cli

import (
	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/cgt/formatter"
	"github.com/robinvdvleuten/cgt/output"
)

type AuditCmd struct {
	Inputs
}

func (cmd *AuditCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "audit")
	if err != nil {
		return err
	}
	defer s.finish()

	calc, err := s.calculate(cmd.Inputs)
	if err != nil {
		return err
	}

	f := formatter.New(append(formatter.FromConfig(s.cfg), formatter.WithStyles(output.NewStyles(ctx.Stdout)))...)
	return f.FormatAudit(ctx.Stdout, calc)
}
