// framing/length.go
package framing

const (
	StartMarker     = 0x7E
	MaxLength       = 30
	MaxLengthFrame  = MaxLength + 2
	lengthHeaderLen = 2
)

// LengthDemuxer reassembles START_MARKER|LENGTH|PAYLOAD frames.
//
// A length byte above MaxLength drops the candidate and everything buffered
// for it; the dropped bytes are not rescanned for a later marker.
type LengthDemuxer struct {
	buf []byte
}

func NewLengthDemuxer() *LengthDemuxer {
	return &LengthDemuxer{buf: make([]byte, 0, MaxLengthFrame)}
}

func (d *LengthDemuxer) Feed(chunk []byte, emit func(frame []byte)) {
	for _, b := range chunk {
		if len(d.buf) == 0 {
			if b == StartMarker {
				d.buf = append(d.buf, b)
			}
			continue
		}

		d.buf = append(d.buf, b)
		if len(d.buf) == lengthHeaderLen && int(b) > MaxLength {
			d.Reset()
			continue
		}
		if len(d.buf) >= lengthHeaderLen && len(d.buf) == int(d.buf[1])+lengthHeaderLen {
			frame := make([]byte, len(d.buf))
			copy(frame, d.buf)
			d.Reset()
			emit(frame)
		}
	}
}

func (d *LengthDemuxer) Reset() {
	d.buf = d.buf[:0]
}

func (d *LengthDemuxer) State() State {
	switch {
	case len(d.buf) == 0:
		return StateIdle
	case len(d.buf) < lengthHeaderLen:
		return StateAccumulating
	default:
		return StateLengthKnown
	}
}

// Buffered reports how many bytes the in-progress candidate holds.
func (d *LengthDemuxer) Buffered() int { return len(d.buf) }

// EncodeLength wraps payload into a length-prefixed frame.
func EncodeLength(payload []byte) ([]byte, error) {
	if len(payload) > MaxLength {
		return nil, ErrPayloadTooLarge
	}
	frame := make([]byte, 0, len(payload)+lengthHeaderLen)
	frame = append(frame, StartMarker, byte(len(payload)))
	return append(frame, payload...), nil
}

// LengthPayload returns the payload of a complete length-prefixed frame.
func LengthPayload(frame []byte) ([]byte, error) {
	if len(frame) < lengthHeaderLen || frame[0] != StartMarker {
		return nil, ErrMalformedFrame
	}
	n := int(frame[1])
	if n > MaxLength || len(frame) != n+lengthHeaderLen {
		return nil, ErrMalformedFrame
	}
	return frame[lengthHeaderLen:], nil
}
