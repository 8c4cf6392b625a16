// Package dash implements the runtime protocol of a provisioned device: the
// host sends UDP datagrams with comma separated hexadecimal values, e.g.
//
//	70,7080,0,254,68,C0,78\r\n
//
// and the device applies them to its outputs.
package dash

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the UDP port of the runtime protocol.
const DefaultPort = 8080

var (
	ErrEmptyFrame = errors.New("empty frame")
	ErrBadFrame   = errors.New("bad frame")
)

// ParseFrame parses the comma separated hex values in payload. Surrounding
// white space (including the CRLF terminator) is ignored.
func ParseFrame(payload string) ([]uint32, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyFrame
	}
	fields := strings.Split(payload, ",")
	values := make([]uint32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q", ErrBadFrame, i, f)
		}
		values[i] = uint32(v)
	}
	return values, nil
}

// FormatFrame is the inverse of ParseFrame. The frame ends with CRLF.
func FormatFrame(values []uint32) []byte {
	buf := make([]byte, 0, len(values)*5+2)
	for i, v := range values {
		if i != 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, strings.ToUpper(strconv.FormatUint(uint64(v), 16))...)
	}
	return append(buf, '\r', '\n')
}

// Addr returns the "host:port" address of a device.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
