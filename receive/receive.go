// Command receive connects to the flight controller and logs everything it
// reports until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clint456/copterlink/config"
	"github.com/clint456/copterlink/copter"
	"github.com/clint456/copterlink/framing"
	"github.com/clint456/copterlink/logging"
	"github.com/clint456/copterlink/serialcomm"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	device := flag.String("device", "", "serial device, overrides the config file")
	baud := flag.Int("baud", 0, "baud rate, overrides the config file")
	list := flag.Bool("list", false, "list serial devices and exit")
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
	if *baud > 0 {
		cfg.Serial.BaudRate = *baud
	}

	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	logger := logging.New("monitor", opts)
	cfg.Serial.Logger = logger

	m := serialcomm.NewManager(cfg.Serial)
	if *list {
		if err := printDevices(m); err != nil {
			logger.Fatal().Err(err).Msg("listing devices failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := copter.NewTracker(copter.DefaultHistory)
	m.OnMessage(func(msg framing.Message) {
		tracker.Observe(msg)
		logMessage(logger, tracker, msg)
	})
	m.OnError(func(err error) {
		if errors.Is(err, framing.ErrMalformedFrame) {
			logger.Debug().Err(err).Msg("bad frame")
			return
		}
		logger.Error().Err(err).Msg("link error")
		if errors.Is(err, serialcomm.ErrConnectionLost) {
			stop()
		}
	})
	m.OnStateChange(func(s serialcomm.State) {
		logger.Info().Stringer("state", s).Msg("link state changed")
	})

	if err := m.Connect(*device); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	logger.Info().Msg("listening, Ctrl+C to quit")

	pollMotion(ctx, m, cfg.MotionPoll, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("link did not close in time")
	}
	st := m.Stats()
	logger.Info().
		Str("conn", st.ConnectionID).
		Uint64("tx_frames", st.TxFrames).
		Uint64("rx_frames", st.RxFrames).
		Uint64("frame_errors", st.FrameErrors).
		Uint64("keepalives", st.KeepalivesSent).
		Uint64("dropped", st.Dropped).
		Msg("session finished")
}

// pollMotion asks for the motion state every interval until ctx ends.
func pollMotion(ctx context.Context, m *serialcomm.Manager, every time.Duration, logger zerolog.Logger) {
	if every <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.Send(copter.Command{Op: copter.OpGetMotionState})
			if err != nil && !errors.Is(err, serialcomm.ErrNotConnected) {
				logger.Warn().Err(err).Msg("motion request dropped")
			}
		}
	}
}

func logMessage(logger zerolog.Logger, tracker *copter.Tracker, msg framing.Message) {
	switch v := msg.(type) {
	case copter.MotionState:
		roll, pitch := tracker.Attitude()
		logger.Info().
			Float64("roll_deg", roll[len(roll)-1]).
			Float64("pitch_deg", pitch[len(pitch)-1]).
			Float32("yaw", v.Yaw).
			Bool("armed", v.Armed).
			Msg("motion")
	case copter.MotorState:
		logger.Info().
			Uints8("motors", []uint8{v.FrontLeft, v.FrontRight, v.RearLeft, v.RearRight}).
			Bool("armed", v.Armed).
			Msg("motors")
	case copter.Pong:
		logger.Debug().Uint32("seq", v.Seq).Msg("pong")
	default:
		logger.Info().Type("type", msg).Interface("message", msg).Msg("message")
	}
}

func printDevices(m *serialcomm.Manager) error {
	devices, err := m.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no serial devices found")
		return nil
	}
	for _, d := range devices {
		if d.USB {
			fmt.Printf("%s\tusb %s:%s %s %s\n", d.Name, d.VID, d.PID, d.Product, d.SerialNumber)
			continue
		}
		fmt.Println(d.Name)
	}
	return nil
}
