package observability

import (
	"sync"
)

// Counter is a monotonically increasing named value.
type Counter struct {
	mu    sync.Mutex
	name  string
	value uint64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Add increments the counter by delta (delta must be non-negative).
func (c *Counter) Add(delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
}

// Value returns the current total.
func (c *Counter) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Name returns the counter's identifier.
func (c *Counter) Name() string { return c.name }

// Gauge is a named value that can move up or down.
type Gauge struct {
	mu    sync.Mutex
	name  string
	value float64
}

func newGauge(name string) *Gauge {
	return &Gauge{name: name}
}

// Set overwrites the gauge's current value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Add adjusts the gauge's current value by delta.
func (g *Gauge) Add(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value += delta
}

// Value returns the gauge's current value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// defaultHistogramWindow bounds the number of raw samples a Histogram
// retains for percentile-style introspection. It has no bearing on the
// aggregate Count/Sum, which accumulate every recorded value forever.
const defaultHistogramWindow = 256

// Histogram tracks a windowed sample of observed values alongside
// aggregate count and sum totals. The aggregates are incremented on
// every Record call before the sample window is ever touched, so
// truncating the window can never corrupt count or sum.
type Histogram struct {
	mu      sync.Mutex
	name    string
	window  int
	samples []float64
	count   uint64
	sum     float64
}

func newHistogram(name string, window int) *Histogram {
	if window <= 0 {
		window = defaultHistogramWindow
	}
	return &Histogram{name: name, window: window}
}

// Record observes a value.
func (h *Histogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += v

	h.samples = append(h.samples, v)
	if len(h.samples) > h.window {
		h.samples = h.samples[len(h.samples)-h.window:]
	}
}

// Count is the total number of observations ever recorded, independent
// of how many raw samples the window currently retains.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum is the running total of every observed value, independent of the
// sample window.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Mean derives the average from the aggregate count/sum, not from the
// (possibly truncated) sample window.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// Samples returns a copy of the currently retained windowed samples.
func (h *Histogram) Samples() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.samples))
	copy(out, h.samples)
	return out
}

// Name returns the histogram's identifier.
func (h *Histogram) Name() string { return h.name }
