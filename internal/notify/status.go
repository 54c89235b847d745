// Package notify delivers step and jump notifications to log, websocket and
// MQTT subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/monitoring"
)

// Status is the running tally sent after every step or jump.
type Status struct {
	Source    string          `json:"source"`
	Signal    detector.Signal `json:"signal"`
	Steps     int64           `json:"steps"`
	Jumps     int64           `json:"jumps"`
	LatencyUs int64           `json:"latency_us"`
	At        time.Time       `json:"at"`
}

// String renders the message the wearable companion app expects.
func (s Status) String() string {
	return fmt.Sprintf("steps: %d jumps: %d  with response time (us): %d", s.Steps, s.Jumps, s.LatencyUs)
}

// Sink receives statuses. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, s Status) error
}

// LogSink writes each status through monitoring.Logf.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, s Status) error {
	monitoring.Logf("[%s] %s %s", s.Source, s.Signal, s)
	return nil
}

// Multi fans a status out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, s Status) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
