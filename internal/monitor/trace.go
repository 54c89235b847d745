// Package monitor keeps a short history of classifier decisions and renders
// it for the debug pages.
package monitor

import (
	"sync"

	"github.com/gammazero/deque"

	"github.com/banshee-data/motion.report/internal/detector"
)

// DefaultTraceCapacity is the number of samples a Trace keeps by default.
const DefaultTraceCapacity = 1000

// Sample is one classified reading.
type Sample struct {
	Index     uint64          `json:"index"`
	Reading   float64         `json:"reading"`
	Rectified float64         `json:"rectified"`
	Mean      float64         `json:"mean"`
	StdDev    float64         `json:"stdev"`
	Upper     float64         `json:"upper"`
	Signal    detector.Signal `json:"signal"`
	WarmingUp bool            `json:"warming_up"`
}

// Trace is a bounded, concurrency-safe ring of samples.
type Trace struct {
	mu      sync.Mutex
	samples deque.Deque[Sample]
	limit   int
	next    uint64
}

// NewTrace returns a Trace holding at most capacity samples.
func NewTrace(capacity int) *Trace {
	if capacity <= 0 {
		capacity = DefaultTraceCapacity
	}
	t := &Trace{limit: capacity}
	t.samples.SetBaseCap(capacity)
	return t
}

// Record appends dec. multiplier is the anomaly multiplier used to draw the
// upper band.
func (t *Trace) Record(dec detector.Decision, multiplier float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.samples.Len() >= t.limit {
		t.samples.PopFront()
	}
	t.samples.PushBack(Sample{
		Index:     t.next,
		Reading:   dec.Reading,
		Rectified: dec.Rectified,
		Mean:      dec.Baseline.Mean,
		StdDev:    dec.Baseline.StdDev,
		Upper:     dec.Baseline.Mean + multiplier*dec.Baseline.StdDev,
		Signal:    dec.Signal,
		WarmingUp: dec.WarmingUp,
	})
	t.next++
}

// Samples returns a copy, oldest first.
func (t *Trace) Samples() []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Sample, t.samples.Len())
	for i := range out {
		out[i] = t.samples.At(i)
	}
	return out
}

// Len returns the number of samples held.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.samples.Len()
}
