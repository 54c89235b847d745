// Package relay forwards device readings to a remote detect endpoint, the way
// a cloud-connected wearable does when it has no local classifier.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/motion.report/internal/detector"
	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// DefaultTimeout bounds a single forward.
const DefaultTimeout = 30 * time.Second

// ErrUnexpectedStatus is returned when the remote answers with anything but
// 200.
var ErrUnexpectedStatus = errors.New("relay: unexpected response status")

// Reply is a decoded detect response. Received is nil when a signal fired.
type Reply struct {
	Signal    detector.Signal `json:"signal"`
	Received  *float64        `json:"recieved"`
	LatencyMs int64           `json:"response time (ms)"`
}

// Relay sends readings to {base}/api/detect.
type Relay struct {
	client  httputil.HTTPClient
	base    string
	timeout time.Duration
	clock   timeutil.Clock
}

// New returns a Relay for the server at base, e.g. "http://10.0.0.5:8080".
// timeout <= 0 selects DefaultTimeout.
func New(client httputil.HTTPClient, base string, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{
		client:  client,
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
		clock:   timeutil.RealClock{},
	}
}

// SetClock replaces the clock used to stamp readings.
func (r *Relay) SetClock(c timeutil.Clock) { r.clock = c }

// Forward sends one reading stamped with timestampMs and decodes the reply.
func (r *Relay) Forward(ctx context.Context, reading float64, timestampMs int64) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/detect?sensor=%.2f&timestamp=%d", r.base, reading, timestampMs)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to forward reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reply{}, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("failed to decode reply: %w", err)
	}
	return reply, nil
}

// Run forwards every reading on lines until ctx is done or lines is closed.
// Readings are stamped with the relay clock in milliseconds so the server's
// latency is meaningful. Status and malformed lines are handled or logged
// like on the sensing loop; failed forwards are logged and skipped.
func (r *Relay) Run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := serialmux.HandleLine(line, func(rd serialmux.Reading) error {
				reply, err := r.Forward(ctx, rd.GyroZ, r.clock.Now().UnixMilli())
				if err != nil {
					return err
				}
				if reply.Signal.Fired() {
					monitoring.Logf("relay: %s detected, response time %dms", reply.Signal, reply.LatencyMs)
				}
				return nil
			})
			if err != nil {
				monitoring.Logf("relay: skipping line %q: %v", line, err)
			}
		}
	}
}
