package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory SerialPorter. ReadError and WriteError
// are returned once and then cleared.
type TestableSerialPort struct {
	mu      sync.Mutex
	ready   *sync.Cond
	in, out bytes.Buffer

	ReadError  error
	WriteError error
	Closed     bool

	// BlockReads parks Read on an empty buffer until data arrives or the
	// port closes, instead of reporting EOF.
	BlockReads bool
}

func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.ready = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeErr(&p.ReadError); err != nil {
		return 0, err
	}
	for p.BlockReads && !p.Closed && p.in.Len() == 0 {
		p.ready.Wait()
	}
	if p.Closed {
		return 0, errPortClosed
	}
	return p.in.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeErr(&p.WriteError); err != nil {
		return 0, err
	}
	return p.out.Write(b)
}

func (p *TestableSerialPort) takeErr(slot *error) error {
	if p.Closed {
		return errPortClosed
	}
	err := *slot
	*slot = nil
	return err
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.ready.Broadcast()
	return nil
}

// AddReadData queues bytes for Read.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(data)
	p.ready.Broadcast()
}

// GetWrittenData returns a copy of everything written so far.
func (p *TestableSerialPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.out.Bytes())
}
