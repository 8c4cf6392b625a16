package esp8266

import (
	"strconv"
	"strings"
)

// maxConns is the number of link IDs supported in multiple connection mode.
// The parsers assume a connection ID is a single digit number.
const maxConns = 5

// ReceiveLine receives one line terminated by CR (the following LF is
// consumed and dropped). A stray LF at the line start is skipped. Characters
// that do not fit in buf are read and discarded. It returns the number of
// bytes stored in buf or ErrTimeout if the transport timed out before the
// terminator was seen.
func (d *Device) ReceiveLine(buf []byte) (int, error) {
	var c [1]byte
	n := 0
	for {
		if d.t.Receive(c[:]) == 0 {
			return 0, ErrTimeout
		}
		if n == 0 && c[0] == '\n' {
			// LF of an echoed "AT...\r\r\n" line
			continue
		}
		if c[0] == '\r' {
			d.t.Receive(c[:])
			break
		}
		if n < len(buf) {
			buf[n] = c[0]
			n++
		}
	}
	if n != 0 {
		d.log.V(1).Info("recv", "line", string(buf[:n]))
	}
	return n, nil
}

// ReceiveOk receives lines until a non-blank one. It succeeds if that line is
// exactly "OK". Any other line is returned as an *ErrorESP.
func (d *Device) ReceiveOk() error {
	var buf [64]byte
	for {
		n, err := d.ReceiveLine(buf[:])
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if line := string(buf[:n]); line != "OK" {
			return &ErrorESP{line}
		}
		return nil
	}
}

// waitResult receives lines until one of ok or fail lines. Connection events
// are tracked, other lines are ignored.
func (d *Device) waitResult(ok string, fail ...string) error {
	var buf [64]byte
	for {
		n, err := d.ReceiveLine(buf[:])
		if err != nil {
			return err
		}
		line := string(buf[:n])
		if line == ok {
			return nil
		}
		for _, f := range fail {
			if line == f {
				return &ErrorESP{line}
			}
		}
		d.Track(line)
	}
}

// ConnEvent is a connection state change reported by the module.
type ConnEvent int

const (
	NoEvent ConnEvent = iota
	Connected
	Closed
)

// ParseConnEvent recognizes the "N,CONNECT" and "N,CLOSED" lines.
func ParseConnEvent(line string) (id int, ev ConnEvent) {
	if len(line) < 2 || line[0] < '0' || line[0] > '9' {
		return -1, NoEvent
	}
	id = int(line[0] - '0')
	switch line[1:] {
	case ",CONNECT":
		return id, Connected
	case ",CLOSED", ",CONNECT FAIL":
		return id, Closed
	}
	return -1, NoEvent
}

// Track updates the open connection bookkeeping if line is a connection event.
func (d *Device) Track(line string) (id int, ev ConnEvent) {
	id, ev = ParseConnEvent(line)
	if ev == NoEvent || id >= maxConns {
		return -1, NoEvent
	}
	open := ev == Connected
	if d.conns[id] != open {
		d.conns[id] = open
		if open {
			d.nconns++
		} else {
			d.nconns--
		}
	}
	return id, ev
}

// OpenConns returns the number of connections the module reported as open.
func (d *Device) OpenConns() int {
	return d.nconns
}

// IsOpen reports whether the connection id is open.
func (d *Device) IsOpen(id int) bool {
	return uint(id) < maxConns && d.conns[id]
}

// ParseIPD parses a received data notification:
//
//	+IPD,<id>,<len>:<data>   (multiple connection mode)
//	+IPD,<len>:<data>        (single connection mode, id = -1)
//
// It returns the connection id, the declared data length and the part of the
// data that follows the colon in line.
func ParseIPD(line string) (id, length int, rest string, err error) {
	if !strings.HasPrefix(line, "+IPD,") {
		return 0, 0, "", ErrParse
	}
	s := line[5:]
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return 0, 0, "", ErrParse
	}
	head, rest := s[:colon], s[colon+1:]
	id = -1
	if len(head) >= 2 && head[1] == ',' {
		// CIPMUX=1
		id = int(head[0]) - '0'
		if uint(id) >= maxConns {
			return 0, 0, "", ErrParse
		}
		head = head[2:]
	}
	length, err = strconv.Atoi(head)
	if err != nil || length < 0 {
		return 0, 0, "", ErrParse
	}
	return id, length, rest, nil
}

// ReceiveFraming receives an +IPD header up to and including the colon,
// skipping any CR/LF before it. It returns the connection id and the data
// length. The data itself is left in the transport.
func (d *Device) ReceiveFraming() (id, length int, err error) {
	var (
		c   [1]byte
		buf [16]byte
		n   int
	)
	for {
		if d.t.Receive(c[:]) == 0 {
			return 0, 0, ErrTimeout
		}
		if n == 0 && (c[0] == '\r' || c[0] == '\n') {
			continue
		}
		if n == len(buf) {
			return 0, 0, ErrParse
		}
		buf[n] = c[0]
		n++
		if c[0] == ':' {
			break
		}
	}
	id, length, _, err = ParseIPD(string(buf[:n]))
	return
}

// Send sends data to the connection id (-1 in single connection mode) using
// AT+CIPSEND. Data may be split in several parts which are sent back to back.
func (d *Device) Send(id int, data ...[]byte) error {
	if id >= maxConns {
		return &Error{d.name, "CIPSEND=", ErrUnkConn}
	}
	size := 0
	for _, p := range data {
		size += len(p)
	}
	const cmd = "CIPSEND="
	var err error
	if id < 0 {
		err = d.SendCommand(cmd, size)
	} else {
		err = d.SendCommand(cmd, id, size)
	}
	if err != nil {
		return err
	}
	// Other connections may report events before the OK.
	if err = d.waitResult("OK", "ERROR"); err != nil {
		return &Error{d.name, cmd, err}
	}
	// Wait for the prompt.
	var c [1]byte
	for c[0] != '>' {
		if d.t.Receive(c[:]) == 0 {
			return &Error{d.name, cmd, ErrTimeout}
		}
	}
	for _, p := range data {
		d.t.Transmit(p)
	}
	if err = d.waitResult("SEND OK", "SEND FAIL", "ERROR"); err != nil {
		if _, ok := err.(*ErrorESP); ok {
			err = ErrSendFail
		}
		return &Error{d.name, cmd, err}
	}
	return nil
}

// ListenUDP opens the connection id as a UDP socket bound to the local port
// that accepts datagrams from any peer:
//
//	AT+CIPSTART=<id>,"UDP","0.0.0.0",<port>,<port>,2
func (d *Device) ListenUDP(id, port int) error {
	const cmd = "CIPSTART="
	if err := d.SendCommand(cmd, id, "UDP", "0.0.0.0", port, port, 2); err != nil {
		return err
	}
	// The module reports "<id>,CONNECT" before OK.
	if err := d.waitResult("OK", "ERROR", "ALREADY CONNECTED"); err != nil {
		return &Error{d.name, cmd, err}
	}
	return nil
}

// Close closes the connection id using AT+CIPCLOSE.
func (d *Device) Close(id int) error {
	if uint(id) >= maxConns {
		return &Error{d.name, "CIPCLOSE=", ErrUnkConn}
	}
	if err := d.SendCommand("CIPCLOSE=", id); err != nil {
		return err
	}
	if err := d.waitResult("OK", "ERROR"); err != nil {
		return &Error{d.name, "CIPCLOSE=", err}
	}
	if d.conns[id] {
		d.conns[id] = false
		d.nconns--
	}
	return nil
}
