// copter/tracker.go
package copter

import (
	"math"
	"sync"

	"github.com/clint456/copterlink/framing"
)

const DefaultHistory = 20

// Tracker keeps the recent attitude history and arm state reported by the
// device. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	size     int
	roll     []float64
	pitch    []float64
	motors   MotorState
	armed    bool
	lastPong uint32
}

func NewTracker(history int) *Tracker {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Tracker{size: history}
}

// Observe folds one decoded message into the tracker. It reports whether the
// message was relevant.
func (t *Tracker) Observe(msg framing.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch m := msg.(type) {
	case MotionState:
		t.roll = pushBounded(t.roll, degrees(m.Roll), t.size)
		t.pitch = pushBounded(t.pitch, degrees(m.Pitch), t.size)
		t.armed = m.Armed
	case MotorState:
		t.motors = m
		t.armed = m.Armed
	case Pong:
		if m.Seq > t.lastPong {
			t.lastPong = m.Seq
		}
	default:
		return false
	}
	return true
}

// Attitude returns copies of the roll and pitch histories in degrees, oldest
// first.
func (t *Tracker) Attitude() (roll, pitch []float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]float64(nil), t.roll...), append([]float64(nil), t.pitch...)
}

func (t *Tracker) Motors() MotorState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.motors
}

func (t *Tracker) Armed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.armed
}

// LastPong is the highest keepalive sequence echoed so far, 0 if none.
func (t *Tracker) LastPong() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastPong
}

// ToggleMotorCommand stops the motors when armed and starts them otherwise.
func (t *Tracker) ToggleMotorCommand() Command {
	if t.Armed() {
		return Command{Op: OpStopMotor}
	}
	return Command{Op: OpStartMotor}
}

func pushBounded(s []float64, v float64, size int) []float64 {
	s = append(s, v)
	if len(s) > size {
		s = s[len(s)-size:]
	}
	return s
}

func degrees(rad float32) float64 {
	return float64(rad) / (2 * math.Pi) * 360
}
