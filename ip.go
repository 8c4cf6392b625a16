package esp8266

import (
	"net/netip"
	"strings"
)

// APAddr returns the IP address of the soft AP interface (AT+CIPAP?).
//
// The response looks like this:
//
//	+CIPAP:ip:"192.168.4.1"
//	+CIPAP:gateway:"192.168.4.1"
//	+CIPAP:netmask:"255.255.255.0"
//
//	OK
func (d *Device) APAddr() (netip.Addr, error) {
	return d.queryIP("CIPAP?", "+CIPAP:ip:\"")
}

// StationAddr returns the IP address of the station interface (AT+CIPSTA?).
func (d *Device) StationAddr() (netip.Addr, error) {
	return d.queryIP("CIPSTA?", "+CIPSTA:ip:\"")
}

func (d *Device) queryIP(cmd, prefix string) (netip.Addr, error) {
	var (
		buf  [80]byte
		addr netip.Addr
		err  error
	)
	if err = d.SendCommand(cmd); err != nil {
		return addr, err
	}
	found := false
	for {
		n, rerr := d.ReceiveLine(buf[:])
		if rerr != nil {
			return netip.Addr{}, &Error{d.name, cmd, rerr}
		}
		line := string(buf[:n])
		switch {
		case line == "":
		case line == "OK":
			if !found {
				return netip.Addr{}, &Error{d.name, cmd, ErrParse}
			}
			return addr, nil
		case line == "ERROR":
			return netip.Addr{}, &Error{d.name, cmd, &ErrorESP{line}}
		case !found && strings.HasPrefix(line, prefix):
			addr, err = ParseIPv4(line[len(prefix):])
			if err != nil {
				return netip.Addr{}, &Error{d.name, cmd, err}
			}
			found = true
		default:
			// gateway, netmask or an unrelated notification
		}
	}
}

// ParseIPv4 parses the dotted decimal IPv4 address at the beginning of s.
// Anything after the fourth octet (e.g. a closing quote) is ignored.
func ParseIPv4(s string) (netip.Addr, error) {
	var ip [4]byte
	for i := range ip {
		k, v := 0, 0
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			v = v*10 + int(s[k]-'0')
			if v > 255 {
				return netip.Addr{}, ErrParse
			}
			k++
		}
		if k == 0 {
			return netip.Addr{}, ErrParse
		}
		ip[i] = byte(v)
		s = s[k:]
		if i != 3 {
			if len(s) == 0 || s[0] != '.' {
				return netip.Addr{}, ErrParse
			}
			s = s[1:]
		}
	}
	return netip.AddrFrom4(ip), nil
}
