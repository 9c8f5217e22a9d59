// serialcomm/utils.go
package serialcomm

import (
	"errors"
	"io"
	"os"
)

// writeFull writes all of data, retrying short writes.
func writeFull(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}

// isReadTimeout reports whether a read error only means "no data yet".
// tarm/serial surfaces VTIME expiry on POSIX as io.EOF.
func isReadTimeout(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
