// serialcomm/manager.go
package serialcomm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clint456/copterlink/framing"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

type Option func(*Manager)

// WithRoster replaces the operating system device listing.
func WithRoster(r Roster) Option {
	return func(m *Manager) { m.roster = r }
}

// WithOpener replaces OpenSerialPort, mostly for tests.
func WithOpener(o Opener) Option {
	return func(m *Manager) { m.open = o }
}

// Manager is the caller-facing side of the link. All methods are safe for
// concurrent use and none of them block on the port.
type Manager struct {
	cfg       SerialConfig
	log       zerolog.Logger
	roster    Roster
	open      Opener
	newTicker func(d time.Duration) (<-chan time.Time, func())

	mu    sync.Mutex
	state State
	conn  *connection
	last  *connection

	onMessage MessageHandler
	onError   ErrorHandler
	onState   StateHandler
}

type connection struct {
	id       xid.ID
	device   string
	outbound chan framing.Message
	stop     chan struct{}
	done     chan struct{}
	released chan struct{}
	seq      atomic.Uint32
	stats    counters
	log      zerolog.Logger
	closed   bool // guarded by Manager.mu
}

func NewManager(cfg SerialConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		log:       cfg.Logger,
		roster:    SystemRoster{},
		open:      OpenSerialPort,
		newTicker: systemTicker,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (m *Manager) OnMessage(h MessageHandler) {
	m.mu.Lock()
	m.onMessage = h
	m.mu.Unlock()
}

// OnError receives frame errors (non-fatal) and connection errors (the
// connection is already down when the handler runs).
func (m *Manager) OnError(h ErrorHandler) {
	m.mu.Lock()
	m.onError = h
	m.mu.Unlock()
}

func (m *Manager) OnStateChange(h StateHandler) {
	m.mu.Lock()
	m.onState = h
	m.mu.Unlock()
}

func (m *Manager) ListDevices() ([]Device, error) {
	return m.roster.Devices()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Controls() Controls {
	return ControlsFor(m.State())
}

// Stats reports the current connection, or the last one after it closed.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	c := m.last
	m.mu.Unlock()
	if c == nil {
		return Stats{}
	}
	return c.stats.snapshot(c.id.String(), c.device)
}

// releaseSlack covers tarm/serial rounding the read timeout up to 100ms.
const releaseSlack = 100 * time.Millisecond

// Connect opens device, or the configured PortName when device is empty, and
// starts the link. If a previous connection's worker still holds its port,
// Connect waits up to one poll interval plus one read timeout for it to let
// go and fails with ErrAlreadyConnected otherwise. Callbacks of the new
// connection start only after the previous connection's last callback
// returned.
func (m *Manager) Connect(device string) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	prev := m.last
	m.mu.Unlock()

	if prev != nil {
		if err := m.awaitRelease(prev); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil || m.last != prev {
		return ErrAlreadyConnected
	}
	cfg := m.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	name := cfg.device(device)
	if name == "" {
		return fmt.Errorf("%w: no device selected", ErrConnectFailed)
	}
	port, err := m.open(name, cfg)
	if err != nil {
		m.log.Warn().Err(err).Str("device", name).Msg("open failed")
		return fmt.Errorf("%w: open %s: %w", ErrConnectFailed, name, err)
	}

	id := xid.New()
	c := &connection{
		id:       id,
		device:   name,
		outbound: make(chan framing.Message, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		released: make(chan struct{}),
		log:      m.log.With().Str("conn", id.String()).Str("device", name).Logger(),
	}
	events := make(chan Event, cfg.QueueSize)
	worker := newLinkWorker(port, cfg, c, events, func() {
		m.mu.Lock()
		m.detach(c)
		m.mu.Unlock()
	})

	m.conn = c
	m.last = c
	m.state = StateConnected

	go worker.run()
	go m.dispatch(c, prev, events)
	if cfg.Keepalive != nil {
		go m.keepalive(c, cfg.KeepaliveInterval, cfg.Keepalive)
	}
	c.log.Info().Int("baud", cfg.BaudRate).Msg("connected")
	return nil
}

// awaitRelease waits for prev's worker to close its port.
func (m *Manager) awaitRelease(prev *connection) error {
	select {
	case <-prev.released:
		return nil
	default:
	}
	bound := m.cfg.PollInterval + m.cfg.ReadTimeout + releaseSlack
	timer := time.NewTimer(bound)
	defer timer.Stop()
	select {
	case <-prev.released:
		return nil
	case <-timer.C:
		prev.log.Warn().Dur("waited", bound).Msg("previous link still holds the port")
		return fmt.Errorf("%w: %s not released after %v", ErrAlreadyConnected, prev.device, bound)
	}
}

// Disconnect asks the worker to stop and returns at once. Calling it while
// disconnected does nothing, so it is safe from any callback.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	m.conn.log.Info().Msg("disconnecting")
	m.detach(m.conn)
}

// Shutdown disconnects and waits until the worker released the port and the
// last callback returned. Connections before the last one have finished by
// then too. It must not be called from a callback.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	c := m.last
	if m.conn != nil {
		m.detach(m.conn)
	}
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues msg for the worker without blocking.
func (m *Manager) Send(msg framing.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ErrNotConnected
	}
	return m.enqueueLocked(m.conn, msg)
}

func (m *Manager) enqueue(c *connection, msg framing.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueueLocked(c, msg)
}

func (m *Manager) enqueueLocked(c *connection, msg framing.Message) error {
	if c.closed {
		return ErrNotConnected
	}
	select {
	case c.outbound <- msg:
		return nil
	default:
		c.stats.dropped.Add(1)
		return ErrQueueFull
	}
}

// detach must be called with m.mu held.
func (m *Manager) detach(c *connection) {
	if m.conn == c {
		m.conn = nil
		m.state = StateDisconnected
	}
	if !c.closed {
		c.closed = true
		close(c.outbound)
		close(c.stop)
	}
}

func (m *Manager) keepalive(c *connection, every time.Duration, build KeepaliveFunc) {
	tick, stop := m.newTicker(every)
	defer stop()
	for {
		select {
		case <-c.stop:
			return
		case <-tick:
			seq := c.seq.Add(1)
			err := m.enqueue(c, build(seq))
			switch {
			case err == nil:
				c.stats.keepalives.Add(1)
			case errors.Is(err, ErrNotConnected):
				return
			default:
				c.log.Warn().Err(err).Uint32("seq", seq).Msg("keepalive dropped")
			}
		}
	}
}

// dispatch is the only place callbacks run for a connection, so they observe
// events in arrival order. It ends when the worker closes events.
func (m *Manager) dispatch(c, prev *connection, events <-chan Event) {
	defer close(c.done)

	if prev != nil {
		<-prev.done
	}
	m.notifyState(StateConnected)
	down := false
	for ev := range events {
		switch ev.Kind {
		case EventMessage:
			if h := m.messageHandler(); h != nil {
				h(ev.Message)
			}
		case EventFrameError:
			m.notifyError(ev.Err)
		case EventConnectionError:
			// the worker already detached c
			down = true
			m.notifyState(StateDisconnected)
			m.notifyError(ev.Err)
		}
	}
	if !down {
		m.notifyState(StateDisconnected)
	}
	c.log.Debug().Msg("connection closed")
}

func (m *Manager) messageHandler() MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onMessage
}

func (m *Manager) notifyError(err error) {
	m.mu.Lock()
	h := m.onError
	m.mu.Unlock()
	if h != nil {
		h(err)
	}
}

func (m *Manager) notifyState(s State) {
	m.mu.Lock()
	h := m.onState
	m.mu.Unlock()
	if h != nil {
		h(s)
	}
}
