package serialcomm

import (
	"sync/atomic"
	"time"

	"github.com/clint456/copterlink/framing"
)

type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Controls mirrors which connection controls a front end should enable.
type Controls struct {
	Connect      bool
	Disconnect   bool
	Refresh      bool
	SelectDevice bool
}

func ControlsFor(s State) Controls {
	connected := s == StateConnected
	return Controls{
		Connect:      !connected,
		Disconnect:   connected,
		Refresh:      !connected,
		SelectDevice: !connected,
	}
}

type EventKind int

const (
	EventMessage EventKind = iota
	// EventFrameError is a frame that could not be decoded or a message that
	// could not be encoded. The link stays up.
	EventFrameError
	// EventConnectionError ends the connection.
	EventConnectionError
)

func (k EventKind) String() string {
	switch k {
	case EventFrameError:
		return "frame-error"
	case EventConnectionError:
		return "connection-error"
	default:
		return "message"
	}
}

// Event travels from the link worker to the manager's dispatcher.
type Event struct {
	Kind    EventKind
	Message framing.Message
	Err     error
	At      time.Time
}

// Device is one serial device visible to the platform.
type Device struct {
	Name         string
	USB          bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Stats counts traffic for one connection.
type Stats struct {
	ConnectionID   string
	Device         string
	TxFrames       uint64
	TxBytes        uint64
	RxFrames       uint64
	RxBytes        uint64
	FrameErrors    uint64
	KeepalivesSent uint64
	Dropped        uint64
}

type counters struct {
	txFrames   atomic.Uint64
	txBytes    atomic.Uint64
	rxFrames   atomic.Uint64
	rxBytes    atomic.Uint64
	frameErrs  atomic.Uint64
	keepalives atomic.Uint64
	dropped    atomic.Uint64
}

func (c *counters) snapshot(id, device string) Stats {
	return Stats{
		ConnectionID:   id,
		Device:         device,
		TxFrames:       c.txFrames.Load(),
		TxBytes:        c.txBytes.Load(),
		RxFrames:       c.rxFrames.Load(),
		RxBytes:        c.rxBytes.Load(),
		FrameErrors:    c.frameErrs.Load(),
		KeepalivesSent: c.keepalives.Load(),
		Dropped:        c.dropped.Load(),
	}
}
