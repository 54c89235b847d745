// Package testutil provides shared test fixtures for the detector, store and
// notification packages.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/notify"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestDB opens a migrated event store under t.TempDir and closes it when
// the test ends.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "test_motion.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return d
}

// ReadingLines formats values as device reading lines, 20ms apart.
func ReadingLines(values ...float64) []string {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = fmt.Sprintf("%s,%d", strconv.FormatFloat(v, 'f', -1, 64), i*20000)
	}
	return lines
}

// Repeat returns n copies of v.
func Repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// CaptureSink is a notify.Sink that records every status.
type CaptureSink struct {
	mu  sync.Mutex
	got []notify.Status
	// Err is returned from every Notify call.
	Err error
}

func (c *CaptureSink) Notify(_ context.Context, s notify.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, s)
	return c.Err
}

// Statuses returns a copy of the recorded statuses.
func (c *CaptureSink) Statuses() []notify.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Status(nil), c.got...)
}
