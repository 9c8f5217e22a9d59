// Package config loads copterlink settings from a TOML file. Keys missing from
// the file keep their defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/clint456/copterlink/copter"
	"github.com/clint456/copterlink/framing"
	"github.com/clint456/copterlink/serialcomm"
	"github.com/rs/zerolog"
)

const (
	KeepalivePing = "ping"
	KeepaliveLED  = "led"
	KeepaliveOff  = "off"

	FramingTelemetry = "telemetry"
	FramingCommand   = "command"
)

type Config struct {
	Serial   serialcomm.SerialConfig
	LogLevel zerolog.Level
	// MotionPoll is how often the monitor asks for the motion state. Zero
	// turns polling off.
	MotionPoll time.Duration
}

type fileConfig struct {
	Device            string `toml:"device"`
	Baud              int    `toml:"baud"`
	ReadTimeout       string `toml:"read_timeout"`
	PollInterval      string `toml:"poll_interval"`
	KeepaliveInterval string `toml:"keepalive_interval"`
	Keepalive         string `toml:"keepalive"`
	DeadAfter         string `toml:"dead_after"`
	Framing           string `toml:"framing"`
	QueueSize         int    `toml:"queue_size"`
	MotionPoll        string `toml:"motion_poll"`
	LogLevel          string `toml:"log_level"`
}

// Default is the GTK firmware link: 9600 baud, telemetry framing, sequenced
// ping every 500ms.
func Default() Config {
	serial := serialcomm.DefaultConfig()
	serial.Codec = copter.NewTelemetryCodec()
	serial.Keepalive = copter.PingKeepalive
	return Config{
		Serial:     serial,
		LogLevel:   zerolog.InfoLevel,
		MotionPoll: 200 * time.Millisecond,
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.Serial.PortName = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.Serial.BaudRate = raw.Baud
	}
	if meta.IsDefined("queue_size") {
		cfg.Serial.QueueSize = raw.QueueSize
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.Serial.ReadTimeout},
		{"poll_interval", raw.PollInterval, &cfg.Serial.PollInterval},
		{"keepalive_interval", raw.KeepaliveInterval, &cfg.Serial.KeepaliveInterval},
		{"dead_after", raw.DeadAfter, &cfg.Serial.DeadAfter},
		{"motion_poll", raw.MotionPoll, &cfg.MotionPoll},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("keepalive") {
		ka, err := ParseKeepalive(raw.Keepalive)
		if err != nil {
			return Config{}, err
		}
		cfg.Serial.Keepalive = ka
	}
	if meta.IsDefined("framing") {
		codec, err := ParseFraming(raw.Framing)
		if err != nil {
			return Config{}, err
		}
		cfg.Serial.Codec = codec
	}
	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.LogLevel)))
		if err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Serial.Validate(); err != nil {
		return err
	}
	if c.MotionPoll < 0 {
		return fmt.Errorf("motion_poll must not be negative, got %v", c.MotionPoll)
	}
	return nil
}

// ParseKeepalive maps a keepalive name to its strategy. "off" yields nil.
func ParseKeepalive(name string) (serialcomm.KeepaliveFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case KeepalivePing, "":
		return copter.PingKeepalive, nil
	case KeepaliveLED:
		return copter.LedToggleKeepalive, nil
	case KeepaliveOff, "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown keepalive %q (want ping, led or off)", name)
	}
}

func ParseFraming(name string) (framing.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FramingTelemetry, "length", "":
		return copter.NewTelemetryCodec(), nil
	case FramingCommand, "slip":
		return copter.NewCommandCodec(), nil
	default:
		return nil, fmt.Errorf("unknown framing %q (want telemetry or command)", name)
	}
}
