package serialmux

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// MockSerialPort is the port behind NewMockSerialMux: reads come from a
// replay pipe and writes are logged.
type MockSerialPort struct {
	io.Reader
	io.WriteCloser
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	return m.WriteCloser.Write(p)
}

type commandLogger struct {
	closeOnce sync.Once
	done      chan struct{}
}

func (c *commandLogger) Write(p []byte) (int, error) {
	monitoring.Logf("mock IMU board received command %q", strings.TrimSpace(string(p)))
	return len(p), nil
}

func (c *commandLogger) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// NewMockSerialMux returns a SerialMux that replays lines in a loop, one per
// interval, until it is closed. It backs --dev runs without a board.
func NewMockSerialMux(lines []string, interval time.Duration) *SerialMux[*MockSerialPort] {
	return newReplaySerialMux(lines, timeutil.RealClock{}, interval)
}

func newReplaySerialMux(lines []string, clock timeutil.Clock, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	cmds := &commandLogger{done: make(chan struct{})}

	mockPort := &MockSerialPort{
		Reader:      r,
		WriteCloser: cmds,
	}

	ticker := clock.NewTicker(interval)
	go func() {
		defer w.Close()
		defer ticker.Stop()
		if len(lines) == 0 {
			<-cmds.done
			return
		}
		for i := 0; ; i++ {
			select {
			case <-cmds.done:
				return
			case <-ticker.C():
				line := lines[i%len(lines)]
				if _, err := io.WriteString(w, line+"\n"); err != nil {
					return
				}
			}
		}
	}()

	m := NewSerialMux(mockPort)
	m.SetClock(clock)
	return m
}
