// copter/telemetry.go
package copter

import (
	"fmt"

	"github.com/clint456/copterlink/framing"
	"github.com/fxamacker/cbor/v2"
)

// TelemetryCodec speaks the structured message set: a length-prefixed frame
// whose payload is opcode | CBOR body | CRC16.
type TelemetryCodec struct{}

func NewTelemetryCodec() *TelemetryCodec { return &TelemetryCodec{} }

func (c *TelemetryCodec) NewDemuxer() framing.Demuxer { return framing.NewLengthDemuxer() }

func (c *TelemetryCodec) Encode(msg framing.Message) ([]byte, error) {
	op, err := opcodeOf(msg)
	if err != nil {
		return nil, err
	}
	payload := []byte{byte(op)}
	if !isBareCommand(op) {
		body, err := cbor.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("telemetry: encode %s: %w", op, err)
		}
		payload = append(payload, body...)
	}
	return framing.EncodeLength(appendCRC(payload))
}

func (c *TelemetryCodec) Decode(frame []byte) (framing.Message, error) {
	payload, err := framing.LengthPayload(frame)
	if err != nil {
		return nil, err
	}
	covered, err := verifyCRC(payload)
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
		return unmarshalCBOR[MotionState](op, body)
	case OpSetLed:
		return unmarshalCBOR[SetLed](op, body)
	case OpPing:
		return unmarshalCBOR[Ping](op, body)
	case OpPong:
		return unmarshalCBOR[Pong](op, body)
	case OpMotorState:
		return unmarshalCBOR[MotorState](op, body)
	case OpSetPoint:
		return unmarshalCBOR[SetPoint](op, body)
	default:
		return nil, fmt.Errorf("%w: unknown %s", framing.ErrMalformedFrame, op)
	}
}

func unmarshalCBOR[T any](op Opcode, body []byte) (framing.Message, error) {
	var m T
	rest, err := cbor.UnmarshalFirst(body, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", framing.ErrMalformedFrame, op, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %s body has %d trailing bytes", framing.ErrMalformedFrame, op, len(rest))
	}
	return m, nil
}
