package serialmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// fanout hands each broadcast line to every registered channel. Once shut,
// new registrations get an already closed channel.
type fanout struct {
	depth int

	mu    sync.Mutex
	chans map[string]chan string
	shut  bool
}

func newFanout(depth int) *fanout {
	return &fanout{depth: depth, chans: make(map[string]chan string)}
}

func subscriberID() string {
	var b [8]byte
	_, _ = crand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (f *fanout) add() (string, chan string) {
	id, ch := subscriberID(), make(chan string, f.depth)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shut {
		close(ch)
	} else {
		f.chans[id] = ch
	}
	return id, ch
}

func (f *fanout) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.chans[id]
	if !ok {
		return
	}
	delete(f.chans, id)
	close(ch)
}

// broadcast delivers line without blocking. A full channel misses the line.
// It reports false once the fanout is shut.
func (f *fanout) broadcast(line string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shut {
		return false
	}
	for _, ch := range f.chans {
		select {
		case ch <- line:
		default:
		}
	}
	return true
}

// shutdown closes every channel. It reports whether this call did the work.
func (f *fanout) shutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shut {
		return false
	}
	f.shut = true
	for id, ch := range f.chans {
		delete(f.chans, id)
		close(ch)
	}
	return true
}
