// copter/messages.go

// Package copter holds the flight-controller message schema and the two
// codecs the firmware builds speak: a length-prefixed telemetry set and a
// SLIP control-code set.
package copter

import (
	"fmt"

	"github.com/clint456/copterlink/framing"
)

// Opcode is the leading payload byte shared by both codecs.
type Opcode byte

const (
	OpToggleLed       Opcode = 0x01
	OpGetMotionState  Opcode = 0x02
	OpSendMotionState Opcode = 0x03
	OpStartMotor      Opcode = 0x04
	OpStopMotor       Opcode = 0x05
	OpSetLed          Opcode = 0x06
	OpPing            Opcode = 0x07
	OpPong            Opcode = 0x08
	OpMotorState      Opcode = 0x09
	OpSetPoint        Opcode = 0x0A
)

func (o Opcode) String() string {
	switch o {
	case OpToggleLed:
		return "toggle-led"
	case OpGetMotionState:
		return "get-motion-state"
	case OpSendMotionState:
		return "motion-state"
	case OpStartMotor:
		return "start-motor"
	case OpStopMotor:
		return "stop-motor"
	case OpSetLed:
		return "set-led"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	case OpMotorState:
		return "motor-state"
	case OpSetPoint:
		return "set-point"
	default:
		return fmt.Sprintf("opcode(0x%02x)", byte(o))
	}
}

// Command is a bare control code without a body.
type Command struct {
	Op Opcode
}

// Ping carries the keepalive sequence number; the device answers with Pong.
type Ping struct {
	_   struct{} `cbor:",toarray"`
	Seq uint32
}

type Pong struct {
	_   struct{} `cbor:",toarray"`
	Seq uint32
}

type SetLed struct {
	_  struct{} `cbor:",toarray"`
	On bool
}

// MotionState is the attitude estimate in radians.
type MotionState struct {
	_     struct{} `cbor:",toarray"`
	Roll  float32
	Pitch float32
	Yaw   float32
	Armed bool
}

// MotorState holds motor outputs in percent.
type MotorState struct {
	_          struct{} `cbor:",toarray"`
	FrontLeft  uint8
	FrontRight uint8
	RearLeft   uint8
	RearRight  uint8
	Armed      bool
}

type SetPointMode uint8

const (
	ModeSequenceTest SetPointMode = iota + 1
	ModeDirectControl
	ModePRYTControl
	ModeStabilize
	ModeAngleControl
)

// SetPoint selects a control mode; Values are interpreted per mode.
type SetPoint struct {
	_      struct{} `cbor:",toarray"`
	Mode   SetPointMode
	Values [4]float32
}

func isBareCommand(op Opcode) bool {
	switch op {
	case OpToggleLed, OpGetMotionState, OpStartMotor, OpStopMotor:
		return true
	}
	return false
}

func opcodeOf(msg framing.Message) (Opcode, error) {
	switch m := msg.(type) {
	case Command:
		if !isBareCommand(m.Op) {
			return 0, fmt.Errorf("%w: %s is not a bare command", framing.ErrUnsupportedMessage, m.Op)
		}
		return m.Op, nil
	case MotionState:
		return OpSendMotionState, nil
	case SetLed:
		return OpSetLed, nil
	case Ping:
		return OpPing, nil
	case Pong:
		return OpPong, nil
	case MotorState:
		return OpMotorState, nil
	case SetPoint:
		return OpSetPoint, nil
	default:
		return 0, fmt.Errorf("%w: %T", framing.ErrUnsupportedMessage, msg)
	}
}
