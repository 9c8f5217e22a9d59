// serialcomm/serialcomm.go

// Package serialcomm owns the serial link to the flight controller: a worker
// that exclusively drives the port and a manager the UI talks to.
package serialcomm

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/clint456/copterlink/framing"
	"github.com/rs/zerolog"
)

var (
	ErrConnectFailed    = errors.New("serialcomm: connect failed")
	ErrNotConnected     = errors.New("serialcomm: not connected")
	ErrAlreadyConnected = errors.New("serialcomm: already connected")
	ErrQueueFull        = errors.New("serialcomm: outbound queue full")
	ErrConnectionLost   = errors.New("serialcomm: connection lost")
	ErrLinkSilent       = errors.New("serialcomm: no frames from device")
)

type MessageHandler func(msg framing.Message)

type ErrorHandler func(err error)

type StateHandler func(state State)

// KeepaliveFunc builds the liveness message for sequence number seq. Sequence
// numbers start at 1 for every connection.
type KeepaliveFunc func(seq uint32) framing.Message

// Port is the physical link. Read must return within the configured read
// timeout; a timeout with no data may be reported as (0, nil) or (0, io.EOF).
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the named device with the link settings from cfg.
type Opener func(name string, cfg SerialConfig) (Port, error)

type SerialConfig struct {
	PortName          string
	BaudRate          int
	ReadTimeout       time.Duration
	PollInterval      time.Duration
	KeepaliveInterval time.Duration
	Keepalive         KeepaliveFunc
	// DeadAfter drops the connection when no frame decodes for this long.
	// Zero disables the check.
	DeadAfter  time.Duration
	QueueSize  int
	ReadBuffer int
	Codec      framing.Codec
	Logger     zerolog.Logger
}

// DefaultConfig returns the link settings of the GTK firmware build. Codec and
// Keepalive are left for the caller to pick, so the result does not connect
// as is; config.Default returns a ready-to-use configuration with the
// telemetry codec and ping keepalive.
func DefaultConfig() SerialConfig {
	return SerialConfig{
		BaudRate:          9600,
		ReadTimeout:       50 * time.Millisecond,
		PollInterval:      50 * time.Millisecond,
		KeepaliveInterval: 500 * time.Millisecond,
		QueueSize:         64,
		ReadBuffer:        256,
		Logger:            zerolog.Nop(),
	}
}

func (c SerialConfig) Validate() error {
	if c.Codec == nil {
		return fmt.Errorf("serial config missing codec (config.Default sets one)")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("serial config baud rate must be positive, got %d", c.BaudRate)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("serial config read timeout must be positive, got %v", c.ReadTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("serial config poll interval must be positive, got %v", c.PollInterval)
	}
	if c.Keepalive != nil && c.KeepaliveInterval <= 0 {
		return fmt.Errorf("serial config keepalive interval must be positive, got %v", c.KeepaliveInterval)
	}
	if c.DeadAfter < 0 {
		return fmt.Errorf("serial config dead_after must not be negative, got %v", c.DeadAfter)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("serial config queue size must be positive, got %d", c.QueueSize)
	}
	if c.ReadBuffer <= 0 {
		return fmt.Errorf("serial config read buffer must be positive, got %d", c.ReadBuffer)
	}
	return nil
}

func (c SerialConfig) device(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return strings.TrimSpace(c.PortName)
}
