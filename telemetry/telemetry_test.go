package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestNoOpCollector(t *testing.T) {
	collector := noOpCollector{}

	timer := collector.Start("test")
	timer.Child("child").End()
	timer.End()

	var buf bytes.Buffer
	collector.Report(&buf, nil)
	assert.Equal(t, 0, buf.Len())
}

func TestFromContext(t *testing.T) {
	t.Run("returns no-op when missing", func(t *testing.T) {
		collector := FromContext(context.Background())
		_, ok := collector.(noOpCollector)
		assert.True(t, ok)
	})

	t.Run("returns stored collector", func(t *testing.T) {
		collector := NewTimingCollector()
		ctx := WithCollector(context.Background(), collector)

		retrieved, ok := FromContext(ctx).(*TimingCollector)
		assert.True(t, ok)
		assert.True(t, retrieved == collector)
	})

	t.Run("StartTimer uses context collector", func(t *testing.T) {
		collector := NewTimingCollector()
		ctx := WithCollector(context.Background(), collector)

		StartTimer(ctx, "tax.run").End()

		stages := collector.Stages()
		assert.Equal(t, 1, len(stages))
		assert.Equal(t, "tax.run", stages[0].Name)
	})
}

func TestTimingCollectorNesting(t *testing.T) {
	collector := NewTimingCollector()
	ctx := WithCollector(context.Background(), collector)

	run := StartTimer(ctx, "tax.run")
	pool := StartTimer(ctx, "tax.pool")
	time.Sleep(time.Millisecond)
	pool.End()
	match := StartTimer(ctx, "tax.match SAME_DAY")
	match.End()
	run.End()

	stages := collector.Stages()
	assert.Equal(t, []string{"tax.run", "tax.pool", "tax.match SAME_DAY"}, stageNames(stages))
	assert.Equal(t, []int{0, 1, 1}, stageDepths(stages))

	var buf bytes.Buffer
	collector.Report(&buf, nil)
	out := buf.String()
	assert.Contains(t, out, "tax.run: ")
	assert.Contains(t, out, "├─ tax.pool: ")
	assert.Contains(t, out, "└─ tax.match SAME_DAY: ")
}

func TestTimingCollectorChild(t *testing.T) {
	collector := NewTimingCollector()

	t1 := collector.Start("Level 1")
	t2 := t1.Child("Level 2")
	t3 := t2.Child("Level 3")
	t3.End()
	t2.End()
	t1.End()

	var buf bytes.Buffer
	collector.Report(&buf, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 3, len(lines))
	assert.True(t, strings.HasPrefix(lines[2], "   └─ Level 3"), "got %q", lines[2])
}

func TestTimingCollectorMultipleRoots(t *testing.T) {
	collector := NewTimingCollector()

	collector.Start("load").End()
	collector.Start("run").End()

	assert.Equal(t, []string{"load", "run"}, stageNames(collector.Stages()))

	collector.Reset()
	assert.Equal(t, 0, len(collector.Stages()))
}

func TestTimingCollectorEndTwice(t *testing.T) {
	collector := NewTimingCollector()

	timer := collector.Start("once")
	timer.End()
	first := collector.Stages()[0].Duration
	time.Sleep(2 * time.Millisecond)
	timer.End()

	assert.Equal(t, first, collector.Stages()[0].Duration)
}

func TestTimingCollectorEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	NewTimingCollector().Report(&buf, nil)
	assert.Equal(t, 0, buf.Len())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{1 * time.Millisecond, "1ms"},
		{100 * time.Millisecond, "100ms"},
		{999 * time.Millisecond, "999ms"},
		{1 * time.Second, "1.00s"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.duration))
		})
	}
}

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

func stageDepths(stages []Stage) []int {
	depths := make([]int, len(stages))
	for i, s := range stages {
		depths[i] = s.Depth
	}
	return depths
}
