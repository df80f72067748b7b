package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/cgt/formatter"
	"github.com/robinvdvleuten/cgt/loader"
	"github.com/robinvdvleuten/cgt/logging"
	"github.com/robinvdvleuten/cgt/output"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/robinvdvleuten/cgt/telemetry"
)

// session holds what every command needs: the configuration, a context
// carrying logger and telemetry, and the writers to report to.
type session struct {
	ctx    context.Context
	cfg    *tax.Config
	stdout io.Writer
	stderr io.Writer

	collector *telemetry.TimingCollector
	timer     telemetry.Timer

	// sources keeps data that cannot be read back from disk, for error context.
	sources map[string][]byte
}

func newSession(kctx *kong.Context, globals *Globals, name string) (*session, error) {
	cfg := tax.NewConfig()
	if globals.Config != "" {
		loaded, err := tax.LoadConfig(globals.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if globals.Debug {
		cfg.Debug = true
	}

	level := "warn"
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.New(kctx.Stderr,
		logging.WithLevel(level),
		logging.WithFormat(logging.Format(globals.LogFormat)),
	)

	ctx := logging.WithLogger(context.Background(), logger)
	ctx = cfg.WithContext(ctx)

	s := &session{
		cfg:     cfg,
		stdout:  kctx.Stdout,
		stderr:  kctx.Stderr,
		sources: map[string][]byte{},
	}

	if globals.Telemetry {
		s.collector = telemetry.NewTimingCollector()
		ctx = telemetry.WithCollector(ctx, s.collector)
		s.timer = s.collector.Start(name)
	}

	s.ctx = ctx
	return s, nil
}

// finish reports telemetry, once.
func (s *session) finish() {
	if s.collector == nil {
		return
	}
	s.timer.End()
	_, _ = fmt.Fprintln(s.stderr)
	s.collector.Report(s.stderr, output.NewStyles(s.stderr))
	s.collector = nil
}

// load reads the transactions named by in. Files named "-", or no files at
// all, read stdin in the requested format.
func (s *session) load(in Inputs) ([]*tax.Transaction, error) {
	opts := []loader.Option{loader.WithLocation(s.cfg.Location)}
	if !in.NoIncludes {
		opts = append(opts, loader.WithFollowIncludes())
	}

	var files []string
	readStdin := len(in.Files) == 0
	for _, f := range in.Files {
		if f == "-" {
			readStdin = true
			continue
		}
		files = append(files, f)
	}

	var txns []*tax.Transaction
	if len(files) > 0 {
		result, err := loader.New(opts...).Load(s.ctx, files...)
		if err != nil {
			return nil, err
		}
		txns = result.Transactions
	}

	if readStdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		s.sources[loader.StdinFilename] = data

		opts = append(opts, loader.WithFormat(loader.Format(in.InputFormat)))
		more, err := loader.New(opts...).LoadBytes(s.ctx, loader.StdinFilename, data)
		if err != nil {
			return nil, err
		}
		txns = append(txns, more...)
		tax.SortTransactions(txns)
	}

	return txns, nil
}

// calculate loads in and runs the calculator over it. Failures are rendered
// to stderr and reported as a CommandError.
func (s *session) calculate(in Inputs) (*tax.Calculator, error) {
	txns, err := s.load(in)
	if err != nil {
		s.renderError(err, "failed to load transactions")
		return nil, NewCommandError(1)
	}

	calc := tax.New(s.cfg, txns)
	if err := calc.Run(s.ctx); err != nil {
		s.renderError(err, "calculation failed")
		return nil, NewCommandError(1)
	}
	return calc, nil
}

func (s *session) renderError(err error, summary string) {
	renderer := NewErrorRenderer(s.sources)
	_, _ = fmt.Fprintln(s.stderr, renderer.Render(err))
	_, _ = fmt.Fprintln(s.stderr)
	printError(s.stderr, summary)
}

// write renders doc to w in one of the output formats.
func (s *session) write(w io.Writer, format string, width int, doc formatter.Document) error {
	f := formatter.New(formatter.FromConfig(s.cfg)...)

	switch format {
	case "markdown":
		_, err := io.WriteString(w, f.Markdown(doc))
		return err

	case "html":
		html, err := formatter.RenderHTML(f.Markdown(doc))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err

	case "pretty":
		out, err := formatter.RenderTerminal(f.Markdown(doc), "", width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}

	f = formatter.New(append(formatter.FromConfig(s.cfg), formatter.WithStyles(output.NewStyles(w)))...)
	for i, cg := range doc.CapitalGains {
		if err := f.FormatCapitalGains(w, cg); err != nil {
			return err
		}
		if i < len(doc.Income) && len(doc.Income[i].Events) > 0 {
			if err := f.FormatIncome(w, doc.Income[i]); err != nil {
				return err
			}
		}
	}
	if doc.Holdings != nil {
		return f.FormatHoldings(w, doc.Holdings)
	}
	return nil
}
