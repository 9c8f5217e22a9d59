// framing/framing.go

// Package framing splits a serial byte stream into frames and defines the
// contract a message codec implements on top of those frames.
package framing

import "errors"

var (
	ErrMalformedFrame     = errors.New("framing: malformed frame")
	ErrPayloadTooLarge    = errors.New("framing: payload too large")
	ErrUnsupportedMessage = errors.New("framing: unsupported message")
)

// Message is a decoded domain value. The framing layer never looks inside it.
type Message any

// Demuxer consumes raw bytes and hands out complete candidate frames.
type Demuxer interface {
	// Feed processes one chunk and calls emit once per completed frame, in
	// arrival order. The frame slice is owned by the callee.
	Feed(chunk []byte, emit func(frame []byte))
	Reset()
	State() State
}

// Codec binds a message schema to one wire layout.
type Codec interface {
	// Encode returns one complete wire frame for msg.
	Encode(msg Message) ([]byte, error)
	// Decode parses exactly one frame as delimited by the codec's demuxer.
	// Failures wrap ErrMalformedFrame.
	Decode(frame []byte) (Message, error)
	NewDemuxer() Demuxer
}

type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateLengthKnown
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateLengthKnown:
		return "length-known"
	default:
		return "idle"
	}
}
