// Command send issues one command to the flight controller and, for queries,
// waits for the answer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clint456/copterlink/config"
	"github.com/clint456/copterlink/copter"
	"github.com/clint456/copterlink/framing"
	"github.com/clint456/copterlink/logging"
	"github.com/clint456/copterlink/serialcomm"
	"github.com/rs/zerolog"
)

var errNoReply = errors.New("no reply from device")

// request is what one -cmd turns into. expect, when set, reports whether a
// received message answers the request.
type request struct {
	msg    framing.Message
	expect func(framing.Message) bool
}

func parseRequest(cmd, values string) (request, error) {
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "start":
		return request{msg: copter.Command{Op: copter.OpStartMotor}}, nil
	case "stop":
		return request{msg: copter.Command{Op: copter.OpStopMotor}}, nil
	case "toggle-led":
		return request{msg: copter.Command{Op: copter.OpToggleLed}}, nil
	case "led-on":
		return request{msg: copter.SetLed{On: true}}, nil
	case "led-off":
		return request{msg: copter.SetLed{On: false}}, nil
	case "get-motion":
		return request{
			msg:    copter.Command{Op: copter.OpGetMotionState},
			expect: isType[copter.MotionState],
		}, nil
	case "ping":
		return request{
			msg: copter.Ping{Seq: 1},
			expect: func(m framing.Message) bool {
				p, ok := m.(copter.Pong)
				return ok && p.Seq == 1
			},
		}, nil
	case "sequence":
		return request{msg: copter.SetPoint{Mode: copter.ModeSequenceTest}}, nil
	case "direct":
		v, err := parseValues(values)
		if err != nil {
			return request{}, err
		}
		return request{msg: copter.SetPoint{Mode: copter.ModeDirectControl, Values: v}}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", cmd)
	}
}

func isType[T any](m framing.Message) bool {
	_, ok := m.(T)
	return ok
}

// parseValues reads four comma separated throttle values in [0, 1].
func parseValues(s string) ([4]float32, error) {
	var out [4]float32
	parts := strings.Split(s, ",")
	if len(parts) != len(out) {
		return out, fmt.Errorf("direct needs 4 comma separated values, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return out, fmt.Errorf("value %d: %w", i+1, err)
		}
		if f < 0 || f > 1 {
			return out, fmt.Errorf("value %d out of range [0,1]: %v", i+1, f)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	device := flag.String("device", "", "serial device, overrides the config file")
	cmd := flag.String("cmd", "ping", "start|stop|toggle-motor|toggle-led|led-on|led-off|get-motion|ping|sequence|direct")
	values := flag.String("values", "", "four comma separated values for -cmd direct")
	wait := flag.Duration("wait", 2*time.Second, "how long to wait for a reply")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		cfg = loaded
	}
	cfg.Serial.Keepalive = nil

	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	logger := logging.New("send", opts)
	cfg.Serial.Logger = logger

	m := serialcomm.NewManager(cfg.Serial)
	replies := make(chan framing.Message, 16)
	m.OnMessage(func(msg framing.Message) {
		select {
		case replies <- msg:
		default:
		}
	})
	lost := make(chan error, 1)
	m.OnError(func(err error) {
		if errors.Is(err, serialcomm.ErrConnectionLost) {
			lost <- err
			return
		}
		logger.Debug().Err(err).Msg("ignoring frame error")
	})

	if err := m.Connect(*device); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	err := run(m, *cmd, *values, *wait, replies, lost, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if serr := m.Shutdown(ctx); serr != nil {
		logger.Warn().Err(serr).Msg("link did not close in time")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("cmd", *cmd).Msg("command failed")
	}
	logger.Info().Str("cmd", *cmd).Uint64("tx_bytes", m.Stats().TxBytes).Msg("done")
}

func run(m *serialcomm.Manager, cmd, values string, wait time.Duration, replies <-chan framing.Message, lost <-chan error, logger zerolog.Logger) error {
	if cmd == "toggle-motor" {
		// the device decides: ask for the arm state first
		tracker := copter.NewTracker(1)
		if err := m.Send(copter.Command{Op: copter.OpGetMotionState}); err != nil {
			return err
		}
		if _, err := await(replies, lost, wait, isType[copter.MotionState], tracker); err != nil {
			return err
		}
		toggle := tracker.ToggleMotorCommand()
		logger.Info().Bool("armed", tracker.Armed()).Stringer("op", toggle.Op).Msg("toggling motors")
		return m.Send(toggle)
	}

	req, err := parseRequest(cmd, values)
	if err != nil {
		return err
	}
	if err := m.Send(req.msg); err != nil {
		return err
	}
	if req.expect == nil {
		return nil
	}
	reply, err := await(replies, lost, wait, req.expect, nil)
	if err != nil {
		return err
	}
	logger.Info().Type("type", reply).Interface("reply", reply).Msg("reply")
	return nil
}

func await(replies <-chan framing.Message, lost <-chan error, wait time.Duration, match func(framing.Message) bool, tracker *copter.Tracker) (framing.Message, error) {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	for {
		select {
		case msg := <-replies:
			if tracker != nil {
				tracker.Observe(msg)
			}
			if match(msg) {
				return msg, nil
			}
		case err := <-lost:
			return nil, err
		case <-timeout.C:
			return nil, fmt.Errorf("%w after %v", errNoReply, wait)
		}
	}
}
