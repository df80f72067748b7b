// Package loader reads transaction files into tax.Transaction values.
//
// Two formats are supported, picked by file extension:
//   - CSV (.csv) with a header row naming the columns
//   - YAML (.yaml, .yml) with a list of transactions and optional includes
//
// Both use the same fields:
//
//	type,asset,quantity,value,timestamp,wallet,note
//	BUY,BTC,0.5,12000.00,2021-03-01 10:15:00,Kraken,
//
// A YAML file may include other files, resolved relative to its directory:
//
//	include:
//	  - exchange.csv
//	transactions:
//	  - type: MINING
//	    asset: ETH
//	    quantity: "0.01"
//	    value: "25.10"
//	    timestamp: 2021-06-01
//
// Example usage:
//
//	ldr := loader.New(loader.WithFollowIncludes(), loader.WithLocation(cfg.Location))
//	result, err := ldr.Load(ctx, "2021.yaml", "kraken.csv")
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robinvdvleuten/cgt/logging"
	"github.com/robinvdvleuten/cgt/tax"
	"github.com/robinvdvleuten/cgt/telemetry"
)

// StdinFilename is the name used for data read from standard input.
const StdinFilename = "<stdin>"

// Format is a transaction file format.
type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a file's extension.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return FormatAuto, fmt.Errorf("%s: unsupported file type, expected .csv, .yaml or .yml", filename)
}

// Loader reads transaction files.
//
// Configure the loader using functional options passed to New:
//
//	loader := New(WithFollowIncludes(), WithLocation(loc))
type Loader struct {
	// FollowIncludes loads the files named by a YAML include list.
	// When false include lists are ignored.
	FollowIncludes bool

	// Location is used for timestamps without a zone offset.
	Location *time.Location

	// Format overrides extension detection, which LoadBytes needs for stdin.
	Format Format
}

// Option configures how files are loaded.
type Option func(*Loader)

// WithFollowIncludes makes the loader recursively load included files.
// Each file is loaded at most once, so include cycles are harmless.
func WithFollowIncludes() Option {
	return func(l *Loader) {
		l.FollowIncludes = true
	}
}

// WithLocation sets the zone for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(l *Loader) {
		l.Location = loc
	}
}

// WithFormat forces a format instead of detecting it from the extension.
func WithFormat(format Format) Option {
	return func(l *Loader) {
		l.Format = format
	}
}

// New creates a new Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{
		Location: time.UTC,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is the outcome of loading one or more files.
type Result struct {
	// Transactions from every file, sorted by asset and timestamp.
	Transactions []*tax.Transaction

	// Root is the absolute path of the first file loaded.
	Root string

	// Files lists the absolute path of every file read, in load order.
	Files []string
}

// Load reads the given files and everything they include.
func (l *Loader) Load(ctx context.Context, filenames ...string) (*Result, error) {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("loader.load (%d files)", len(filenames)))
	defer timer.End()

	state := &loaderState{
		loader:  l,
		visited: make(map[string]bool),
		result:  &Result{},
	}

	for _, filename := range filenames {
		if err := state.loadRecursive(ctx, filename); err != nil {
			return nil, err
		}
	}

	if len(state.result.Files) > 0 {
		state.result.Root = state.result.Files[0]
	}
	tax.SortTransactions(state.result.Transactions)

	logging.FromContext(ctx).Debug("loaded transactions",
		"files", len(state.result.Files), "transactions", len(state.result.Transactions))
	return state.result, nil
}

// LoadBytes parses data as a single file named filename. Includes cannot be
// followed from here since there is no directory to resolve them against.
func (l *Loader) LoadBytes(ctx context.Context, filename string, data []byte) ([]*tax.Transaction, error) {
	format, err := l.formatOf(filename)
	if err != nil {
		return nil, err
	}

	doc, err := l.parse(ctx, filename, format, data)
	if err != nil {
		return nil, err
	}

	if l.FollowIncludes && len(doc.includes) > 0 {
		if filename == StdinFilename {
			return nil, fmt.Errorf("include lists are not supported when reading from stdin")
		}
		return nil, fmt.Errorf("include lists found; use Load() instead of LoadBytes() to resolve includes")
	}

	tax.SortTransactions(doc.transactions)
	return doc.transactions, nil
}

// MustLoad is like Load but panics on error.
func (l *Loader) MustLoad(ctx context.Context, filenames ...string) *Result {
	result, err := l.Load(ctx, filenames...)
	if err != nil {
		panic(err)
	}
	return result
}

// MustLoadBytes is like LoadBytes but panics on error.
func (l *Loader) MustLoadBytes(ctx context.Context, filename string, data []byte) []*tax.Transaction {
	txns, err := l.LoadBytes(ctx, filename, data)
	if err != nil {
		panic(err)
	}
	return txns
}

func (l *Loader) formatOf(filename string) (Format, error) {
	if l.Format != FormatAuto {
		return l.Format, nil
	}
	return FormatOf(filename)
}

// document is the parsed content of one file.
type document struct {
	transactions []*tax.Transaction
	includes     []string
}

func (l *Loader) parse(ctx context.Context, filename string, format Format, data []byte) (*document, error) {
	timer := telemetry.StartTimer(ctx, "loader.parse "+filepath.Base(filename))
	defer timer.End()

	switch format {
	case FormatCSV:
		txns, err := l.parseCSV(filename, data)
		if err != nil {
			return nil, err
		}
		return &document{transactions: txns}, nil
	case FormatYAML:
		return l.parseYAML(filename, data)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// loaderState tracks state during recursive loading.
type loaderState struct {
	loader  *Loader
	visited map[string]bool
	result  *Result
}

func (s *loaderState) loadRecursive(ctx context.Context, filename string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for %s: %w", filename, err)
	}
	if s.visited[absPath] {
		return nil
	}
	s.visited[absPath] = true

	format, err := s.loader.formatOf(filename)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	doc, err := s.loader.parse(ctx, filename, format, data)
	if err != nil {
		return err
	}

	s.result.Files = append(s.result.Files, absPath)
	s.result.Transactions = append(s.result.Transactions, doc.transactions...)

	if !s.loader.FollowIncludes {
		return nil
	}

	baseDir := filepath.Dir(absPath)
	for _, include := range doc.includes {
		if !filepath.IsAbs(include) {
			include = filepath.Join(baseDir, include)
		}
		if err := s.loadRecursive(ctx, include); err != nil {
			return fmt.Errorf("in file %s: %w", filename, err)
		}
	}
	return nil
}
