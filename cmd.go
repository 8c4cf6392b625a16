package esp8266

import "errors"

// cmdBufLen is the maximum length of a formatted command including CRLF.
const cmdBufLen = 128

var errTxOverflow = errors.New("Tx buffer overflow")

// SendCommand formats and transmits an AT command: "AT+" + name + args + CRLF.
// Name should be a command name without the AT+ prefix (e.g. "CWMODE=" or
// "CIPAP?"). Args may be of type nil, string or int. Strings are quoted and
// escaped, nil leaves an empty argument. SendCommand does not wait for any
// response.
func (d *Device) SendCommand(name string, args ...any) error {
	var buf [cmdBufLen]byte
	n, err := formatCmd(&buf, "AT+", name, args)
	if err != nil {
		return &Error{d.name, name, err}
	}
	d.log.V(1).Info("send", "cmd", string(buf[:n-2]))
	d.t.Transmit(buf[:n])
	return nil
}

func formatCmd(buf *[cmdBufLen]byte, prefix, name string, args []any) (int, error) {
	n := copy(buf[:], prefix)
	n += copy(buf[n:], name)
	insert := func(c byte) {
		if n < len(buf) {
			buf[n] = c
			n++
		}
	}
	for i, arg := range args {
		if i != 0 {
			insert(',')
		}
		switch a := arg.(type) {
		case string:
			insert('"')
			for k := 0; k < len(a); k++ {
				c := a[k]
				if c == '"' || c == '\\' || c == ',' {
					insert('\\')
				}
				insert(c)
			}
			insert('"')
		case int:
			if a < 0 {
				insert('-')
				a = -a
			}
			switch {
			case a < 10:
				insert(byte(a + '0')) // fast path
			default:
				f := n
				for a != 0 {
					r := a % 10
					a /= 10
					insert(byte(r + '0'))
				}
				l := n - 1
				for f < l {
					buf[f], buf[l] = buf[l], buf[f]
					f++
					l--
				}
			}
		default:
			if arg != nil {
				return 0, ErrArgType
			}
		}
	}
	if n > len(buf)-2 {
		return 0, errTxOverflow
	}
	buf[n] = '\r'
	buf[n+1] = '\n'
	return n + 2, nil
}
