package serialcomm

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// fakePort behaves like tarm/serial on POSIX: a read with nothing pending
// returns (0, io.EOF) after the read timeout.
type fakePort struct {
	reads    chan []byte
	readErrs chan error
	writes   chan []byte
	gate     chan struct{}
	entered  chan struct{}
	pending  []byte
	timeout  time.Duration
	closes   atomic.Int32
	closed   chan struct{}
	once     sync.Once

	mu       sync.Mutex
	writeErr error
}

func newFakePort() *fakePort {
	return &fakePort{
		reads:    make(chan []byte, 64),
		readErrs: make(chan error, 1),
		writes:   make(chan []byte, 256),
		entered:  make(chan struct{}, 256),
		timeout:  2 * time.Millisecond,
		closed:   make(chan struct{}),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		select {
		case chunk := <-p.reads:
			p.pending = chunk
		case err := <-p.readErrs:
			return 0, err
		case <-time.After(p.timeout):
			return 0, io.EOF
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.entered <- struct{}{}
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	err := p.writeErr
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}
	p.writes <- append([]byte(nil), b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closes.Add(1)
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) failWrites(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// opener hands out port and counts open attempts.
type opener struct {
	port  *fakePort
	err   error
	calls atomic.Int32
	name  atomic.Value
}

func (o *opener) open(name string, _ SerialConfig) (Port, error) {
	o.calls.Add(1)
	o.name.Store(name)
	if o.err != nil {
		return nil, o.err
	}
	return o.port, nil
}

type staticRoster []Device

func (r staticRoster) Devices() ([]Device, error) { return r, nil }
