// serialcomm/roster.go
package serialcomm

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
)

// Roster lists serial devices a connection can be opened on.
type Roster interface {
	Devices() ([]Device, error)
}

// SystemRoster asks the operating system on every call.
type SystemRoster struct{}

func (SystemRoster) Devices() ([]Device, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, Device{
			Name:         p.Name,
			USB:          p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})
	return devices, nil
}
