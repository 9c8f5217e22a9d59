package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clint456/copterlink/copter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "copterlink.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
device = " /dev/ttyACM0 "
baud = 19200
read_timeout = "20ms"
keepalive = "led"
framing = "command"
dead_after = "3s"
log_level = "DEBUG"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.PortName)
	assert.Equal(t, 19200, cfg.Serial.BaudRate)
	assert.Equal(t, 20*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.Serial.DeadAfter)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.IsType(t, &copter.CommandCodec{}, cfg.Serial.Codec)
	require.NotNil(t, cfg.Serial.Keepalive)
	assert.Equal(t, copter.SetLed{On: true}, cfg.Serial.Keepalive(1))

	assert.Equal(t, def.Serial.PollInterval, cfg.Serial.PollInterval)
	assert.Equal(t, def.Serial.KeepaliveInterval, cfg.Serial.KeepaliveInterval)
	assert.Equal(t, def.Serial.QueueSize, cfg.Serial.QueueSize)
	assert.Equal(t, def.MotionPoll, cfg.MotionPoll)
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 50*time.Millisecond, cfg.Serial.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.KeepaliveInterval)
	assert.Zero(t, cfg.Serial.DeadAfter)
	assert.IsType(t, &copter.TelemetryCodec{}, cfg.Serial.Codec)
	assert.Equal(t, copter.Ping{Seq: 4}, cfg.Serial.Keepalive(4))
}

func TestKeepaliveOff(t *testing.T) {
	cfg, err := Load(writeConfig(t, `keepalive = "off"`))
	require.NoError(t, err)
	assert.Nil(t, cfg.Serial.Keepalive)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"bad duration", `poll_interval = "abc"`, "parse poll_interval"},
		{"zero baud", `baud = 0`, "baud rate"},
		{"negative queue", `queue_size = -1`, "queue size"},
		{"unknown framing", `framing = "hdlc"`, "unknown framing"},
		{"unknown keepalive", `keepalive = "blink"`, "unknown keepalive"},
		{"bad level", `log_level = "loud"`, "log_level"},
		{"unknown key", `bauds = 9600`, "unknown key"},
		{"negative motion poll", `motion_poll = "-1s"`, "motion_poll"},
		{"not toml", `device = `, "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
