package telemetry

import (
	"io"
	"sync"
	"time"

	"github.com/robinvdvleuten/cgt/output"
)

// TimingCollector records timers as a tree. It is safe for concurrent use,
// which the web server relies on when a reload runs while a request reads
// the previous stages.
type TimingCollector struct {
	mu      sync.Mutex
	roots   []*timerNode
	current *timerNode
}

type timerNode struct {
	name     string
	start    time.Time
	end      time.Time
	children []*timerNode
	parent   *timerNode
}

func (n *timerNode) duration() time.Duration {
	if n.end.IsZero() {
		return 0
	}
	return n.end.Sub(n.start)
}

// NewTimingCollector creates an empty collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{}
}

// Start begins timing an operation. Timers started while another is running
// are nested under it; otherwise they become a new root.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := &timerNode{name: name, start: time.Now()}
	if c.current == nil {
		c.roots = append(c.roots, node)
	} else {
		node.parent = c.current
		c.current.children = append(c.current.children, node)
	}
	c.current = node

	return &timingTimer{collector: c, node: node}
}

// Report writes the timing tree of every root to w.
func (c *TimingCollector) Report(w io.Writer, styles *output.Styles) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, root := range c.roots {
		formatTimingTree(w, root, styles)
	}
}

// Stages returns all finished timers in depth-first order.
func (c *TimingCollector) Stages() []Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stages []Stage
	var walk func(n *timerNode, depth int)
	walk = func(n *timerNode, depth int) {
		if !n.end.IsZero() {
			stages = append(stages, Stage{Name: n.name, Depth: depth, Duration: n.duration()})
		}
		for _, child := range n.children {
			walk(child, depth+1)
		}
	}
	for _, root := range c.roots {
		walk(root, 0)
	}
	return stages
}

// Reset discards everything recorded so far.
func (c *TimingCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roots = nil
	c.current = nil
}

type timingTimer struct {
	collector *TimingCollector
	node      *timerNode
}

// End stops the timer. Ending a timer twice keeps the first end time.
func (t *timingTimer) End() {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	if !t.node.end.IsZero() {
		return
	}
	t.node.end = time.Now()

	if t.collector.current == t.node {
		t.collector.current = t.node.parent
	}
}

// Child creates a timer nested under this one, regardless of which timer is
// currently innermost.
func (t *timingTimer) Child(name string) Timer {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	node := &timerNode{
		name:   name,
		start:  time.Now(),
		parent: t.node,
	}
	t.node.children = append(t.node.children, node)

	return &timingTimer{collector: t.collector, node: node}
}
