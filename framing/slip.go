// framing/slip.go
package framing

const (
	SLIPEnd    = 0xC0
	SLIPEsc    = 0xDB
	SLIPEscEnd = 0xDC
	SLIPEscEsc = 0xDD

	// DefaultSLIPMaxFrame bounds the unescaped payload of one SLIP frame.
	DefaultSLIPMaxFrame = 256
)

// SLIPDemuxer reassembles END-delimited SLIP frames and emits them unescaped.
// Bytes seen before the first END, or after an oversized candidate until the
// next END, are noise and dropped. Senders may emit a leading END, a trailing
// END, or both.
type SLIPDemuxer struct {
	max     int
	buf     []byte
	active  bool
	escaped bool
}

func NewSLIPDemuxer(maxFrame int) *SLIPDemuxer {
	if maxFrame <= 0 {
		maxFrame = DefaultSLIPMaxFrame
	}
	return &SLIPDemuxer{max: maxFrame, buf: make([]byte, 0, maxFrame)}
}

func (d *SLIPDemuxer) Feed(chunk []byte, emit func(frame []byte)) {
	for _, b := range chunk {
		if !d.active {
			if b == SLIPEnd {
				d.active = true
			}
			continue
		}

		if d.escaped {
			d.escaped = false
			switch b {
			case SLIPEscEnd:
				b = SLIPEnd
			case SLIPEscEsc:
				b = SLIPEsc
			}
			d.push(b)
			continue
		}

		switch b {
		case SLIPEnd:
			if len(d.buf) == 0 {
				// back-to-back END: still waiting for the first payload byte
				continue
			}
			frame := make([]byte, len(d.buf))
			copy(frame, d.buf)
			// the closing END also opens the next frame
			d.buf = d.buf[:0]
			emit(frame)
		case SLIPEsc:
			d.escaped = true
		default:
			d.push(b)
		}
	}
}

func (d *SLIPDemuxer) push(b byte) {
	if len(d.buf) >= d.max {
		d.Reset()
		return
	}
	d.buf = append(d.buf, b)
}

func (d *SLIPDemuxer) Reset() {
	d.buf = d.buf[:0]
	d.active = false
	d.escaped = false
}

func (d *SLIPDemuxer) State() State {
	if d.active {
		return StateAccumulating
	}
	return StateIdle
}

// EncodeSLIP escapes payload and wraps it in END markers.
func EncodeSLIP(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, SLIPEnd)
	for _, b := range payload {
		switch b {
		case SLIPEnd:
			out = append(out, SLIPEsc, SLIPEscEnd)
		case SLIPEsc:
			out = append(out, SLIPEsc, SLIPEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, SLIPEnd)
}
