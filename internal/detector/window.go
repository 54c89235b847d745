package detector

import "github.com/gammazero/deque"

// Window is a fixed-capacity FIFO of recent values. Index 0 is the oldest
// value; once the window is full every Push evicts from the front before
// appending to the back.
type Window struct {
	buf deque.Deque[float64]
	cap int
}

// NewWindow creates an empty Window holding at most capacity values.
func NewWindow(capacity int) *Window {
	w := &Window{cap: capacity}
	w.buf.SetBaseCap(capacity)
	return w
}

// Push appends v, evicting the oldest value first when the window is full.
func (w *Window) Push(v float64) {
	w.evictIfFull()
	w.buf.PushBack(v)
}

// evictIfFull drops the oldest value when the window is at capacity. The
// smoothing branch of the classifier reads the window between eviction and
// append, so the two steps are kept separate.
func (w *Window) evictIfFull() {
	if w.buf.Len() >= w.cap {
		w.buf.PopFront()
	}
}

// Fill pushes v until the window is full.
func (w *Window) Fill(v float64) {
	for w.buf.Len() < w.cap {
		w.buf.PushBack(v)
	}
}

// At returns the i-th value counted from the oldest. It panics when i is out
// of range.
func (w *Window) At(i int) float64 {
	return w.buf.At(i)
}

// Len returns the number of values currently held.
func (w *Window) Len() int { return w.buf.Len() }

// Cap returns the window capacity.
func (w *Window) Cap() int { return w.cap }

// Full reports whether the window holds Cap values.
func (w *Window) Full() bool { return w.buf.Len() >= w.cap }

// Values returns a copy of the window contents, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, w.buf.Len())
	for i := range out {
		out[i] = w.buf.At(i)
	}
	return out
}

// Clear removes every value.
func (w *Window) Clear() {
	w.buf.Clear()
}
