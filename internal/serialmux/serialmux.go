// Package serialmux fans the line output of a single IMU board out to any
// number of subscribers and carries commands back to it.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/timeutil"
)

// ErrWriteFailed is returned when the port accepted only part of a command.
var ErrWriteFailed = errors.New("short write to serial port")

// DefaultSampleInterval is the gyro sampling cadence requested by Initialize.
const DefaultSampleInterval = 20 * time.Millisecond

// subscriberBuffer absorbs short consumer stalls; lines beyond it are dropped.
const subscriberBuffer = 64

// SerialMuxInterface is what the rest of the program needs from a board
// connection, real or not.
type SerialMuxInterface interface {
	// Subscribe registers a new line channel. The returned id is passed to
	// Unsubscribe.
	Subscribe() (string, chan string)
	Unsubscribe(string)

	// SendCommand writes one newline terminated command to the board.
	SendCommand(string) error

	// Monitor pumps board lines to subscribers until ctx ends, the port
	// reaches EOF, or Close is called.
	Monitor(context.Context) error

	// Close shuts every subscriber channel, then the port.
	Close() error

	// Initialize pushes the host clock and the sampling cadence to the board.
	Initialize() error

	// AttachAdminRoutes mounts the /debug/ board console on mux.
	AttachAdminRoutes(*http.ServeMux)
}

// SerialMux reads newline separated records from one port and copies each to
// every subscriber.
type SerialMux[T SerialPorter] struct {
	port T
	subs *fanout

	clock          timeutil.Clock
	sampleInterval time.Duration

	writeMu sync.Mutex
}

// NewSerialMux wraps port. Nothing is read until Monitor runs.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:           port,
		subs:           newFanout(subscriberBuffer),
		clock:          timeutil.RealClock{},
		sampleInterval: DefaultSampleInterval,
	}
}

// SetClock replaces the clock used for device time sync.
func (s *SerialMux[T]) SetClock(c timeutil.Clock) {
	s.clock = c
}

// SetSampleInterval sets the cadence sent by Initialize. Non-positive values
// are ignored.
func (s *SerialMux[T]) SetSampleInterval(d time.Duration) {
	if d > 0 {
		s.sampleInterval = d
	}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) { return s.subs.add() }

func (s *SerialMux[T]) Unsubscribe(id string) { s.subs.remove(id) }

// Initialize sends T=<unix ms> followed by S=<interval ms>.
func (s *SerialMux[T]) Initialize() error {
	steps := []struct {
		what string
		cmd  string
	}{
		{"synchronize clock", fmt.Sprintf("T=%d", s.clock.Now().UnixMilli())},
		{"set sample interval", fmt.Sprintf("S=%d", s.sampleInterval.Milliseconds())},
	}
	for _, step := range steps {
		if err := s.SendCommand(step.cmd); err != nil {
			return fmt.Errorf("failed to %s: %w", step.what, err)
		}
	}
	return nil
}

// SendCommand appends a newline when missing. Concurrent callers are
// serialised so commands never interleave on the wire.
func (s *SerialMux[T]) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write([]byte(command))
	switch {
	case err != nil:
		return err
	case n < len(command):
		return ErrWriteFailed
	}
	return nil
}

func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	scanned := make(chan error, 1)
	go s.scan(ctx, lines, scanned)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanned:
			return err
		case line := <-lines:
			if !s.subs.broadcast(strings.TrimRight(line, "\r")) {
				return nil
			}
		}
	}
}

// scan owns the blocking reads. It hands lines over one at a time and
// reports the scanner's final error, nil at EOF.
func (s *SerialMux[T]) scan(ctx context.Context, lines chan<- string, scanned chan<- error) {
	sc := bufio.NewScanner(s.port)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
	scanned <- sc.Err()
}

func (s *SerialMux[T]) Close() error {
	s.subs.shutdown()
	return s.port.Close()
}
