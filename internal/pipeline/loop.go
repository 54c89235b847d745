package pipeline

import (
	"context"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/monitor"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/notify"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// EventRecorder stores fired events. *db.DB implements it.
type EventRecorder interface {
	RecordEvent(db.Event) (string, error)
}

// Options wires the optional collaborators of a Loop. Nil fields are
// skipped, except Clock and Counter which get defaults.
type Options struct {
	Sink    notify.Sink
	Store   EventRecorder
	Trace   *monitor.Trace
	Clock   timeutil.Clock
	Counter *Counter
}

// Loop classifies one serial stream. It is driven by a single goroutine;
// the accessors below may be called from others.
type Loop struct {
	detector   *detector.Locked
	calibrator *Calibrator
	counter    *Counter
	sink       notify.Sink
	store      EventRecorder
	trace      *monitor.Trace
	clock      timeutil.Clock
}

// NewLoop builds a loop for cfg that calibrates over calibrationSamples
// readings before classifying.
func NewLoop(cfg detector.Config, calibrationSamples int, o Options) (*Loop, error) {
	d, err := detector.NewLocked(cfg)
	if err != nil {
		return nil, err
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.Counter == nil {
		o.Counter = &Counter{}
	}
	return &Loop{
		detector:   d,
		calibrator: NewCalibrator(calibrationSamples),
		counter:    o.Counter,
		sink:       o.Sink,
		store:      o.Store,
		trace:      o.Trace,
		clock:      o.Clock,
	}, nil
}

// Counter returns the loop's step and jump counter.
func (l *Loop) Counter() *Counter { return l.counter }

// Calibrator returns the loop's bias calibrator.
func (l *Loop) Calibrator() *Calibrator { return l.calibrator }

// Config returns the sensing detector's tuning.
func (l *Loop) Config() detector.Config { return l.detector.Config() }

// Snapshot returns the detector state.
func (l *Loop) Snapshot() detector.Snapshot { return l.detector.Snapshot() }

// Run consumes device lines until ctx is done or lines is closed. Malformed
// lines are logged and skipped.
func (l *Loop) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := l.HandleLine(ctx, line); err != nil {
				monitoring.Logf("sensing loop: skipping line %q: %v", line, err)
			}
		}
	}
}

// HandleLine dispatches one device line.
func (l *Loop) HandleLine(ctx context.Context, line string) error {
	return serialmux.HandleLine(line, func(r serialmux.Reading) error {
		l.HandleReading(ctx, r)
		return nil
	})
}

// HandleReading calibrates and classifies r. It returns the decision and
// false while the bias is still being calibrated.
func (l *Loop) HandleReading(ctx context.Context, r serialmux.Reading) (detector.Decision, bool) {
	start := l.clock.Now()

	corrected, ok := l.calibrator.Apply(r.GyroZ)
	if !ok {
		if l.calibrator.Done() {
			monitoring.Logf("sensing loop: gyro bias calibrated to %.4f", l.calibrator.Bias())
		}
		return detector.Decision{}, false
	}

	dec := l.detector.Observe(corrected)
	l.trace.Record(dec, l.detector.Config().AnomalyMultiplier)
	if !dec.Signal.Fired() {
		return dec, true
	}

	steps, jumps := l.counter.Add(dec.Signal)
	latency := l.clock.Since(start).Microseconds()

	if l.store != nil {
		_, err := l.store.RecordEvent(db.Event{
			Source:     db.SourceSerial,
			Signal:     dec.Signal,
			Reading:    corrected,
			Mean:       dec.Baseline.Mean,
			StdDev:     dec.Baseline.StdDev,
			LatencyUs:  latency,
			ProducedAt: start,
		})
		if err != nil {
			monitoring.Logf("sensing loop: failed to record event: %v", err)
		}
	}

	if l.sink != nil {
		err := l.sink.Notify(ctx, notify.Status{
			Source:    db.SourceSerial,
			Signal:    dec.Signal,
			Steps:     steps,
			Jumps:     jumps,
			LatencyUs: latency,
			At:        start,
		})
		if err != nil {
			monitoring.Logf("sensing loop: notify failed: %v", err)
		}
	}
	return dec, true
}
