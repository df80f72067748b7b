// Package telemetry collects hierarchical stage timings for a calculation run.
//
// Collectors travel through the context, so the loader, the calculator and the
// web server can be instrumented without changing their signatures:
//
//	collector := telemetry.NewTimingCollector()
//	ctx := telemetry.WithCollector(context.Background(), collector)
//
//	timer := telemetry.StartTimer(ctx, "tax.run")
//	match := timer.Child("tax.match SAME_DAY")
//	// ... work ...
//	match.End()
//	timer.End()
//
//	collector.Report(os.Stderr, output.NewStyles(os.Stderr))
package telemetry

import (
	"context"
	"io"
	"time"

	"github.com/robinvdvleuten/cgt/output"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// Collector receives timers for the stages of a run.
type Collector interface {
	// Start begins timing an operation nested under the innermost running timer.
	Start(name string) Timer

	// Report writes the collected timings to w. Styles may be nil.
	Report(w io.Writer, styles *output.Styles)
}

// Timer tracks a single operation's timing.
type Timer interface {
	End()
	Child(name string) Timer
}

// Stage is one finished timer, flattened out of the tree.
type Stage struct {
	Name     string        `json:"name"`
	Depth    int           `json:"depth"`
	Duration time.Duration `json:"duration"`
}

// WithCollector adds a collector to a context.
func WithCollector(ctx context.Context, collector Collector) context.Context {
	return context.WithValue(ctx, contextKey{}, collector)
}

// FromContext extracts the collector from context.
// If no collector is present, returns a collector that does nothing.
func FromContext(ctx context.Context) Collector {
	if collector, ok := ctx.Value(contextKey{}).(Collector); ok {
		return collector
	}
	return noOpCollector{}
}

// StartTimer starts a timer on the collector carried by ctx.
func StartTimer(ctx context.Context, name string) Timer {
	return FromContext(ctx).Start(name)
}
