package framing

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(d Demuxer, chunks ...[]byte) [][]byte {
	var frames [][]byte
	for _, c := range chunks {
		d.Feed(c, func(f []byte) { frames = append(frames, f) })
	}
	return frames
}

func TestLengthDemuxerSingleFrame(t *testing.T) {
	frames := collect(NewLengthDemuxer(), []byte{0x7E, 0x03, 0x01, 0x02, 0x03})
	require.Len(t, frames, 1)

	payload, err := LengthPayload(frames[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, payload)
}

func TestLengthDemuxerCorruptLengthRecovers(t *testing.T) {
	d := NewLengthDemuxer()
	frames := collect(d,
		[]byte{0x7E, 0x1F, 0x10, 0x11},
		[]byte{0x7E, 0x01, 0xAA},
	)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x7E, 0x01, 0xAA}, frames[0])
	assert.Equal(t, StateIdle, d.State())
}

func TestLengthDemuxerDropsNoiseBeforeMarker(t *testing.T) {
	noise := []byte("boot v1.2\r\n")
	stream := append(append([]byte{}, noise...), 0x7E, 0x02, 0x55, 0x66)
	stream = append(stream, []byte("trailing")...)

	frames := collect(NewLengthDemuxer(), stream)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x7E, 0x02, 0x55, 0x66}, frames[0])
}

func TestLengthDemuxerZeroLengthFrame(t *testing.T) {
	frames := collect(NewLengthDemuxer(), []byte{0x7E, 0x00, 0x7E, 0x00})
	assert.Equal(t, [][]byte{{0x7E, 0x00}, {0x7E, 0x00}}, frames)
}

func TestLengthDemuxerMarkerInsidePayloadIsData(t *testing.T) {
	frames := collect(NewLengthDemuxer(), []byte{0x7E, 0x02, 0x7E, 0x7E})
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x7E, 0x02, 0x7E, 0x7E}, frames[0])
}

func TestLengthDemuxerStates(t *testing.T) {
	d := NewLengthDemuxer()
	assert.Equal(t, StateIdle, d.State())
	collect(d, []byte{0x7E})
	assert.Equal(t, StateAccumulating, d.State())
	collect(d, []byte{0x04, 0x01})
	assert.Equal(t, StateLengthKnown, d.State())
	assert.Equal(t, 3, d.Buffered())
	d.Reset()
	assert.Equal(t, StateIdle, d.State())
}

func TestLengthDemuxerBufferNeverExceedsMaxFrame(t *testing.T) {
	d := NewLengthDemuxer()
	rng := rand.New(rand.NewSource(7))
	chunk := make([]byte, 4096)
	rng.Read(chunk)
	for _, b := range chunk {
		d.Feed([]byte{b}, func([]byte) {})
		require.LessOrEqual(t, d.Buffered(), MaxLengthFrame)
	}
}

func TestLengthDemuxerFragmentationInvariance(t *testing.T) {
	var stream []byte
	var want [][]byte
	for i := 0; i < 20; i++ {
		payload := bytes.Repeat([]byte{byte(i)}, i%(MaxLength+1))
		frame, err := EncodeLength(payload)
		require.NoError(t, err)
		want = append(want, frame)
		stream = append(stream, []byte{0x00, 0x13}...)
		stream = append(stream, frame...)
	}

	whole := collect(NewLengthDemuxer(), stream)
	require.Equal(t, want, whole)

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		var chunks [][]byte
		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(9)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		assert.Equal(t, want, collect(NewLengthDemuxer(), chunks...), "round %d", round)
	}
}

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{name: "empty", payload: nil},
		{name: "max", payload: bytes.Repeat([]byte{0xAB}, MaxLength)},
		{name: "too large", payload: bytes.Repeat([]byte{0xAB}, MaxLength+1), wantErr: ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeLength(tt.payload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, frame, len(tt.payload)+2)
			payload, err := LengthPayload(frame)
			require.NoError(t, err)
			assert.Equal(t, len(tt.payload), len(payload))
		})
	}
}

func TestLengthPayloadRejectsBadFrames(t *testing.T) {
	for _, frame := range [][]byte{
		nil,
		{0x7E},
		{0x00, 0x00},
		{0x7E, 0x02, 0x01},
		{0x7E, 0x1F},
	} {
		_, err := LengthPayload(frame)
		assert.ErrorIs(t, err, ErrMalformedFrame, "frame % x", frame)
	}
}
