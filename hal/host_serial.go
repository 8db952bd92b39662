//go:build !tinygo

package hal

import (
	"errors"
	"fmt"
	"io"
)

// pumpSerial feeds bytes read from r into the UART receive line.
func pumpSerial(r io.Reader, u *NS16550a, log Logger) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			u.Receive(buf[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && log != nil {
				log.WriteLineString(fmt.Sprintf("hal: serial input: %v", err))
			}
			return
		}
	}
}
