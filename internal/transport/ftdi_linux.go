//go:build linux

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenFTDI opens the first FTDI-style USB serial adapter it finds. FTDI
// chips enumerate as /dev/ttyUSB*, so discovery is a stat sweep over the
// first few indices; only the baud rate is configurable.
func OpenFTDI(baud int) (Transport, error) {
	device := detectFTDIDevice()
	if device == "" {
		return nil, fmt.Errorf("%w: no /dev/ttyUSB* device found", ErrConnection)
	}
	f, err := openRaw(device, baud)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s @ %d: %v", ErrConnection, device, baud, err)
	}
	return f, nil
}

func detectFTDIDevice() string {
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf("/dev/ttyUSB%d", i)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// openRaw opens a tty in raw mode at the requested baud rate.
func openRaw(path string, baud int) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	spd, err := baudToUnix(baud)
	if err != nil {
		return nil, err
	}

	// Raw mode: no line processing, no echo, 8N1.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8

	// Block until at least one byte is available.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, fmt.Errorf("os.NewFile failed")
	}
	ok = true
	return f, nil
}

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 1000000:
		return unix.B1000000, nil
	default:
		return 0, fmt.Errorf("unsupported baud %d", baud)
	}
}
