// Package display drives the LED readout used to show the device state: the
// IP address during provisioning and the step number of a failed
// configuration.
package display

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

type Color uint8

const (
	Red Color = iota
	Green
	Blue
	White
)

var colorNames = [...]string{"red", "green", "blue", "white"}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "color(" + strconv.Itoa(int(c)) + ")"
}

// Display is an LED or segment readout.
type Display interface {
	Clear()
	ShowIP(ip netip.Addr, c Color)
	ShowCode(code int, c Color)
}

// IPDigits returns the decimal digits of every octet of ip without leading
// zeros. A zero octet yields a single 0. The dashboard shows them one by one
// with a separator between octets.
func IPDigits(ip netip.Addr) [][]int {
	b := ip.As4()
	out := make([][]int, 4)
	for i, v := range b {
		x := int(v)
		digits := []int{x / 100, x / 10 % 10, x % 10}
		k := 0
		for k < 2 && digits[k] == 0 {
			k++
		}
		out[i] = digits[k:]
	}
	return out
}

// Binary returns the width least significant bits of code, most significant
// first, as lit (true) or dark LEDs.
func Binary(code, width int) []bool {
	bits := make([]bool, width)
	for i := range bits {
		bits[width-1-i] = code>>i&1 != 0
	}
	return bits
}

// Log is a Display that writes the readouts to a logger.
type Log struct {
	log logr.Logger
}

// NewLog returns a logging display.
func NewLog(log logr.Logger) *Log {
	return &Log{log: log.WithName("display")}
}

func (l *Log) Clear() {
	l.log.V(1).Info("clear")
}

func (l *Log) ShowIP(ip netip.Addr, c Color) {
	var sb strings.Builder
	for i, octet := range IPDigits(ip) {
		if i != 0 {
			sb.WriteByte('.')
		}
		for _, d := range octet {
			sb.WriteByte(byte('0' + d))
		}
	}
	l.log.Info("show address", "ip", sb.String(), "color", c.String())
}

func (l *Log) ShowCode(code int, c Color) {
	var sb strings.Builder
	for _, on := range Binary(code, 8) {
		if on {
			sb.WriteByte('*')
		} else {
			sb.WriteByte('.')
		}
	}
	l.log.Info("show code", "code", code, "leds", sb.String(), "color", c.String())
}
