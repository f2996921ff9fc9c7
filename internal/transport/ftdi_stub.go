//go:build !linux

package transport

import "fmt"

// OpenFTDI is only implemented on linux, where FTDI adapters enumerate as
// /dev/ttyUSB*.
func OpenFTDI(baud int) (Transport, error) {
	return nil, fmt.Errorf("%w: ftdi transport not supported on this platform", ErrConnection)
}
