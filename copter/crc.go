// copter/crc.go
package copter

import (
	"encoding/binary"
	"fmt"

	"github.com/clint456/copterlink/framing"
	"github.com/sigurn/crc16"
)

const crcSize = 2

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

func calculateCRC16(data []byte) uint16 {
	return crc16.Checksum(data, modbusTable)
}

func appendCRC(payload []byte) []byte {
	return binary.BigEndian.AppendUint16(payload, calculateCRC16(payload))
}

// verifyCRC checks the trailing checksum and returns the covered bytes.
func verifyCRC(payload []byte) ([]byte, error) {
	if len(payload) < 1+crcSize {
		return nil, fmt.Errorf("%w: short payload (%d bytes)", framing.ErrMalformedFrame, len(payload))
	}
	body := payload[:len(payload)-crcSize]
	received := binary.BigEndian.Uint16(payload[len(payload)-crcSize:])
	if calculated := calculateCRC16(body); received != calculated {
		return nil, fmt.Errorf("%w: crc mismatch (got %04x, want %04x)", framing.ErrMalformedFrame, received, calculated)
	}
	return body, nil
}
