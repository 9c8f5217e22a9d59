// serialcomm/port.go
package serialcomm

import (
	"github.com/tarm/serial"
)

// OpenSerialPort opens name as 8 data bits, no parity, one stop bit, no flow
// control. On POSIX the read timeout is rounded up to whole deciseconds.
func OpenSerialPort(name string, cfg SerialConfig) (Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, err
	}
	// drop whatever the device printed before we attached
	if err := port.Flush(); err != nil {
		cfg.Logger.Debug().Err(err).Str("device", name).Msg("flush after open failed")
	}
	return port, nil
}
