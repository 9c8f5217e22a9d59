// copter/command.go
package copter

import (
	"encoding/binary"
	"fmt"

	"github.com/clint456/copterlink/framing"
)

// CommandCodec speaks the control-code set: a SLIP frame whose payload is
// opcode | little-endian fixed body | CRC16.
type CommandCodec struct {
	maxFrame int
}

func NewCommandCodec() *CommandCodec {
	return &CommandCodec{maxFrame: framing.DefaultSLIPMaxFrame}
}

func (c *CommandCodec) NewDemuxer() framing.Demuxer { return framing.NewSLIPDemuxer(c.maxFrame) }

func (c *CommandCodec) Encode(msg framing.Message) ([]byte, error) {
	op, err := opcodeOf(msg)
	if err != nil {
		return nil, err
	}
	payload := []byte{byte(op)}
	if !isBareCommand(op) {
		payload, err = binary.Append(payload, binary.LittleEndian, msg)
		if err != nil {
			return nil, fmt.Errorf("command: encode %s: %w", op, err)
		}
	}
	payload = appendCRC(payload)
	if len(payload) > c.maxFrame {
		return nil, framing.ErrPayloadTooLarge
	}
	return framing.EncodeSLIP(payload), nil
}

// Decode expects the unescaped frame produced by the SLIP demuxer.
func (c *CommandCodec) Decode(frame []byte) (framing.Message, error) {
	covered, err := verifyCRC(frame)
	if err != nil {
		return nil, err
	}
	op, body := Opcode(covered[0]), covered[1:]
	if isBareCommand(op) {
		if len(body) != 0 {
			return nil, fmt.Errorf("%w: %s carries %d unexpected bytes", framing.ErrMalformedFrame, op, len(body))
		}
		return Command{Op: op}, nil
	}

	switch op {
	case OpSendMotionState:
		return decodeFixed[MotionState](op, body)
	case OpSetLed:
		return decodeFixed[SetLed](op, body)
	case OpPing:
		return decodeFixed[Ping](op, body)
	case OpPong:
		return decodeFixed[Pong](op, body)
	case OpMotorState:
		return decodeFixed[MotorState](op, body)
	case OpSetPoint:
		return decodeFixed[SetPoint](op, body)
	default:
		return nil, fmt.Errorf("%w: unknown %s", framing.ErrMalformedFrame, op)
	}
}

func decodeFixed[T any](op Opcode, body []byte) (framing.Message, error) {
	var m T
	n, err := binary.Decode(body, binary.LittleEndian, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", framing.ErrMalformedFrame, op, err)
	}
	if n != len(body) {
		return nil, fmt.Errorf("%w: %s body has %d trailing bytes", framing.ErrMalformedFrame, op, len(body)-n)
	}
	return m, nil
}
