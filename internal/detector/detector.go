// Package detector classifies a stream of gyroscope readings into steps and
// jumps using a smoothed z-score against an adaptive baseline.
//
// A Detector owns two windows. The raw window only gates warm-up: until it
// holds WindowCapacity readings every call returns SignalNone. The filtered
// window feeds the statistics; normal readings enter it unchanged while
// anomalous readings are damped by Influence before they are stored, so a
// burst of movement does not immediately widen the band it is measured
// against.
package detector

import (
	"math"
)

// Decision describes one Observe call.
type Decision struct {
	// Reading is the value passed in and Rectified the value that entered
	// the windows.
	Reading   float64 `json:"reading"`
	Rectified float64 `json:"rectified"`
	// Baseline is the filtered mean and standard deviation the reading was
	// compared against.
	Baseline Stats `json:"baseline"`
	// Deviation is Rectified-Baseline.Mean.
	Deviation float64 `json:"deviation"`
	Anomalous bool    `json:"anomalous"`
	WarmingUp bool    `json:"warming_up"`
	Signal    Signal  `json:"signal"`
}

// Snapshot is a copy of the detector state for diagnostics.
type Snapshot struct {
	Raw       []float64 `json:"raw"`
	Filtered  []float64 `json:"filtered"`
	Stats     Stats     `json:"stats"`
	Signal    Signal    `json:"signal"`
	Calls     uint64    `json:"calls"`
	WarmingUp bool      `json:"warming_up"`
}

// Detector is the streaming classifier. It is not safe for concurrent use;
// create one per stream or wrap it with Locked.
type Detector struct {
	cfg      Config
	raw      *Window
	filtered *Window
	stats    Stats
	signal   Signal
	calls    uint64
}

// New returns a Detector for cfg.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:      cfg,
		raw:      NewWindow(cfg.WindowCapacity),
		filtered: NewWindow(cfg.WindowCapacity),
	}
	d.init()
	return d, nil
}

func (d *Detector) init() {
	d.raw.Clear()
	d.filtered.Clear()
	if d.cfg.PrefillRaw {
		d.raw.Fill(0)
	}
	// A zero-seeded filtered window keeps the statistics defined and the
	// smoothing index addressable from the first steady-phase call.
	d.filtered.Fill(0)
	d.stats = Stats{}
	d.signal = SignalNone
	d.calls = 0
}

// Rectify maps a raw reading to the magnitude that enters the windows:
// negative readings keep their magnitude, everything else becomes 0.
func Rectify(reading float64) float64 {
	if reading < 0 {
		return -reading
	}
	return 0
}

// Classify consumes one reading and returns its classification.
func (d *Detector) Classify(reading float64) Signal {
	return d.Observe(reading).Signal
}

// Observe consumes one reading and returns the full decision.
func (d *Detector) Observe(reading float64) Decision {
	r := Rectify(reading)
	d.calls++

	dec := Decision{
		Reading:   reading,
		Rectified: r,
		Baseline:  d.stats,
		Deviation: r - d.stats.Mean,
	}

	if !d.raw.Full() {
		d.raw.Push(r)
		dec.WarmingUp = true
		dec.Signal = SignalNone
		return dec
	}

	d.raw.Push(r)

	if math.Abs(dec.Deviation) > d.cfg.AnomalyMultiplier*d.stats.StdDev {
		dec.Anomalous = true
		// Below both thresholds the previous signal is left in place.
		if dec.Deviation > d.cfg.JumpThreshold {
			d.signal = SignalJump
		} else if dec.Deviation > d.cfg.StepThreshold {
			d.signal = SignalStep
		}

		d.filtered.evictIfFull()
		smoothed := d.cfg.Influence*r + (1-d.cfg.Influence)*d.filtered.At(d.cfg.SmoothingIndex)
		d.filtered.Push(smoothed)
	} else {
		d.signal = SignalNone
		d.filtered.Push(r)
	}

	if s, err := ComputeStats(d.filtered.Values()); err == nil {
		d.stats = s
	}

	dec.Signal = d.signal
	return dec
}

// Stats returns the current filtered mean and standard deviation.
func (d *Detector) Stats() Stats { return d.stats }

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config { return d.cfg }

// Snapshot copies the current state.
func (d *Detector) Snapshot() Snapshot {
	return Snapshot{
		Raw:       d.raw.Values(),
		Filtered:  d.filtered.Values(),
		Stats:     d.stats,
		Signal:    d.signal,
		Calls:     d.calls,
		WarmingUp: !d.raw.Full(),
	}
}

// Reset returns the detector to its freshly constructed state.
func (d *Detector) Reset() {
	d.init()
}
