package uart

import (
	"fmt"
	"io"

	bugst "go.bug.st/serial"

	"github.com/ziutek/serial"
)

// Open opens the serial device and sets its speed.
func Open(device string, baud int) (io.ReadWriteCloser, error) {
	s, err := serial.Open(device)
	if err != nil {
		return nil, err
	}
	if err = s.SetSpeed(baud); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: set speed %d: %w", device, baud, err)
	}
	return s, nil
}

// Ports lists the serial ports available on the host.
func Ports() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("get ports: %w", err)
	}
	return ports, nil
}
