// Package esp8266 is a driver for the AT command interface of the ESP8266
// Wi-Fi module.
//
// The driver is a plain request/response client: the caller sends a command
// and then pulls the response lines from the transport. Nothing runs in the
// background, so a Device must be used by one goroutine at a time.
package esp8266

import (
	"time"

	"github.com/go-logr/logr"
)

// Transport is the byte level link to the radio. Transmit never reports
// errors. Receive returns less than len(p) bytes if its timeout elapses.
type Transport interface {
	Transmit(p []byte)
	Receive(p []byte) int
}

// Clearer is implemented by transports that can discard received data.
type Clearer interface {
	Clear()
}

// Device is the driver context for one ESP8266 module.
type Device struct {
	name       string
	t          Transport
	log        logr.Logger
	resetDelay time.Duration
	conns      [maxConns]bool
	nconns     int
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the device logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Device) { d.log = log }
}

// WithResetDelay sets the time Reset waits for the module to reboot.
func WithResetDelay(delay time.Duration) Option {
	return func(d *Device) { d.resetDelay = delay }
}

// NewDevice returns a driver for the ESP8266 reachable through t.
func NewDevice(name string, t Transport, opts ...Option) *Device {
	d := &Device{
		name:       name,
		t:          t,
		log:        logr.Discard(),
		resetDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Cmd sends the command and waits for OK (see ReceiveOk).
func (d *Device) Cmd(name string, args ...any) error {
	if err := d.SendCommand(name, args...); err != nil {
		return err
	}
	if err := d.ReceiveOk(); err != nil {
		return &Error{d.name, name, err}
	}
	return nil
}

// Reset restarts the module and disables the command echo:
//
//	AT+RST
//	ATE0
//
// Everything received while the module was booting is discarded.
func (d *Device) Reset() error {
	if err := d.SendCommand("RST"); err != nil {
		return err
	}
	time.Sleep(d.resetDelay)
	d.Clear()
	d.log.V(1).Info("send", "cmd", "ATE0")
	d.t.Transmit([]byte("ATE0\r\n"))
	var buf [16]byte
	for {
		n, err := d.ReceiveLine(buf[:])
		if err != nil {
			return &Error{d.name, "E0", err}
		}
		// Echo is still on here so ATE0 and boot noise may come first.
		switch line := string(buf[:n]); line {
		case "OK":
			d.nconns = 0
			d.conns = [maxConns]bool{}
			return nil
		case "ERROR":
			return &Error{d.name, "E0", &ErrorESP{line}}
		case "":
		default:
			d.log.V(1).Info("ignored", "line", line)
		}
	}
}

// Clear discards received data if the transport supports it.
func (d *Device) Clear() {
	if c, ok := d.t.(Clearer); ok {
		c.Clear()
	}
}

// Transmit writes raw data to the module.
func (d *Device) Transmit(p []byte) {
	d.t.Transmit(p)
}

// Receive reads raw data from the module. See Transport.
func (d *Device) Receive(p []byte) int {
	return d.t.Receive(p)
}

// Discard reads and drops n bytes. It returns the number of bytes that could
// not be read before timeout.
func (d *Device) Discard(n int) int {
	var buf [64]byte
	for n > 0 {
		m := n
		if m > len(buf) {
			m = len(buf)
		}
		k := d.t.Receive(buf[:m])
		n -= k
		if k < m {
			break
		}
	}
	return n
}
