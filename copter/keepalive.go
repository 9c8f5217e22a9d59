// copter/keepalive.go
package copter

import "github.com/clint456/copterlink/framing"

// PingKeepalive sends a sequenced ping the device echoes back as Pong.
func PingKeepalive(seq uint32) framing.Message {
	return Ping{Seq: seq}
}

// LedToggleKeepalive blinks the status LED, starting with on. Firmware
// builds without ping support use it to feed their watchdog.
func LedToggleKeepalive(seq uint32) framing.Message {
	return SetLed{On: seq%2 == 1}
}
