package detector

import "sync"

// Classifier is implemented by Detector and Locked.
type Classifier interface {
	Classify(reading float64) Signal
	Observe(reading float64) Decision
	Snapshot() Snapshot
}

// Locked serialises access to one Detector shared by several goroutines. The
// lock is held for the whole update so windows and statistics are never seen
// half-written.
type Locked struct {
	mu sync.Mutex
	d  *Detector
}

// NewLocked builds a Detector for cfg and wraps it.
func NewLocked(cfg Config) (*Locked, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Locked{d: d}, nil
}

func (l *Locked) Classify(reading float64) Signal {
	return l.Observe(reading).Signal
}

func (l *Locked) Observe(reading float64) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.d.Observe(reading)
}

func (l *Locked) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.d.Snapshot()
}

func (l *Locked) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.d.Reset()
}

// Config returns the wrapped detector's configuration.
func (l *Locked) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.d.Config()
}
