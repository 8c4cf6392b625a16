package esp8266

import (
	"strings"
	"time"
)

// Join connects the station interface to an access point using AT+CWJAP.
// The module needs several seconds to associate, so lines are polled until OK
// or FAIL arrives or timeout elapses. The "+CWJAP:<reason>" line the module
// prints before FAIL is returned as the ErrorESP code.
func (d *Device) Join(ssid, password string, timeout time.Duration) error {
	const cmd = "CWJAP="
	if err := d.SendCommand(cmd, ssid, password); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	reason := ""
	var buf [64]byte
	for {
		n, err := d.ReceiveLine(buf[:])
		if time.Now().After(deadline) {
			return &Error{d.name, cmd, ErrTimeout}
		}
		if err != nil {
			continue
		}
		switch line := string(buf[:n]); {
		case line == "OK":
			return nil
		case line == "FAIL" || line == "ERROR":
			if reason == "" {
				reason = line
			}
			return &Error{d.name, cmd, &ErrorESP{reason}}
		case strings.HasPrefix(line, "+CWJAP:"):
			reason = line
		}
	}
}
