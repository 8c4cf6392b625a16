// Package esptest provides a scripted ESP8266 peer for tests.
//
// Radio consumes the AT commands written to it and answers with canned or
// handler generated responses. Data announced with AT+CIPSEND is collected and
// can be inspected with Sent.
package esptest

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
)

// A Handler returns the response to a command. Args is everything after the
// command name, e.g. "=2" for AT+CWMODE=2 or "?" for AT+CIPAP?.
type Handler func(args string) string

// Canned responses.
const (
	OK    = "\r\nOK\r\n"
	Error = "\r\nERROR\r\n"
)

var defaults = map[string]string{
	"RST":       OK,
	"E0":        OK,
	"CWMODE":    OK,
	"CWSAP":     OK,
	"CIPMUX":    OK,
	"CIPSERVER": OK,
	"CWJAP":     "WIFI CONNECTED\r\nWIFI GOT IP\r\n" + OK,
	"CIPAP": "+CIPAP:ip:\"192.168.4.1\"\r\n" +
		"+CIPAP:gateway:\"192.168.4.1\"\r\n" +
		"+CIPAP:netmask:\"255.255.255.0\"\r\n" + OK,
	"CIPSTA": "+CIPSTA:ip:\"192.168.1.50\"\r\n" +
		"+CIPSTA:gateway:\"192.168.1.1\"\r\n" +
		"+CIPSTA:netmask:\"255.255.255.0\"\r\n" + OK,
}

// Radio is a fake ESP8266. It implements io.ReadWriteCloser: the driver writes
// commands to it and reads responses from it.
type Radio struct {
	mu       sync.Mutex
	handlers map[string]Handler
	cmds     []string
	sent     []string
	in       []byte
	raw      int
	rawbuf   []byte
	closed   bool
	once     sync.Once

	echoOnReset bool
	echo        bool

	out chan []byte
	pr  *io.PipeReader
	pw  *io.PipeWriter
}

// New returns a Radio with the default responses installed.
func New() *Radio {
	r := &Radio{
		handlers: make(map[string]Handler),
		out:      make(chan []byte, 1024),
	}
	r.pr, r.pw = io.Pipe()
	go func() {
		for p := range r.out {
			if _, err := r.pw.Write(p); err != nil {
				break
			}
		}
		r.pw.Close()
	}()
	return r
}

// Reply installs a fixed response for the command name (without AT+ and
// without arguments, e.g. "CWJAP").
func (r *Radio) Reply(cmd, resp string) {
	r.Handle(cmd, func(string) string { return resp })
}

// Handle installs a response handler for the command name.
func (r *Radio) Handle(cmd string, h Handler) {
	r.mu.Lock()
	r.handlers[cmd] = h
	r.mu.Unlock()
}

// EchoOnReset makes the radio behave like real firmware: AT+RST turns the
// command echo on and ATE0 turns it off. While echo is on every command line
// is sent back as "AT...\r\r\n" before its response.
func (r *Radio) EchoOnReset() {
	r.mu.Lock()
	r.echoOnReset = true
	r.mu.Unlock()
}

// Inject sends unsolicited data to the driver (e.g. "0,CONNECT\r\n").
func (r *Radio) Inject(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(s)
}

func (r *Radio) emit(s string) {
	if r.closed || s == "" {
		return
	}
	r.out <- []byte(s)
}

// Commands returns the received commands without the AT prefix and CRLF, e.g.
// "+CWMODE=2" or "E0".
func (r *Radio) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cmds...)
}

// Sent returns the data received with AT+CIPSEND, one entry per command.
func (r *Radio) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

// Read implements io.Reader.
func (r *Radio) Read(p []byte) (int, error) {
	return r.pr.Read(p)
}

// Write implements io.Writer.
func (r *Radio) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.in = append(r.in, p...)
	for len(r.in) != 0 {
		if r.raw > 0 {
			n := r.raw
			if n > len(r.in) {
				n = len(r.in)
			}
			r.rawbuf = append(r.rawbuf, r.in[:n]...)
			r.in = r.in[n:]
			r.raw -= n
			if r.raw == 0 {
				r.sent = append(r.sent, string(r.rawbuf))
				r.emit("\r\nRecv " + strconv.Itoa(len(r.rawbuf)) + " bytes\r\n\r\nSEND OK\r\n")
				r.rawbuf = nil
			}
			continue
		}
		i := bytes.Index(r.in, []byte("\r\n"))
		if i < 0 {
			break
		}
		line := string(r.in[:i])
		r.in = r.in[i+2:]
		r.dispatch(line)
	}
	return len(p), nil
}

func (r *Radio) dispatch(line string) {
	if !strings.HasPrefix(line, "AT") {
		return
	}
	if r.echo {
		r.emit(line + "\r\r\n")
	}
	line = line[2:]
	r.cmds = append(r.cmds, line)
	name := strings.TrimPrefix(line, "+")
	args := ""
	if i := strings.IndexAny(name, "=?"); i >= 0 {
		name, args = name[:i], name[i:]
	}
	switch {
	case name == "RST" && r.echoOnReset:
		r.echo = true
	case name == "E0":
		r.echo = false
	}
	if h, ok := r.handlers[name]; ok {
		r.emit(h(args))
		return
	}
	switch name {
	case "CIPSEND":
		a := strings.Split(strings.TrimPrefix(args, "="), ",")
		n, err := strconv.Atoi(a[len(a)-1])
		if err != nil || n <= 0 {
			r.emit(Error)
			return
		}
		r.raw = n
		r.emit(OK + "> ")
		return
	case "CIPSTART":
		id := strings.TrimPrefix(args, "=")
		if i := strings.IndexByte(id, ','); i >= 0 {
			id = id[:i]
		}
		r.emit(id + ",CONNECT\r\n" + OK)
		return
	case "CIPCLOSE":
		id := strings.TrimPrefix(args, "=")
		r.emit(id + ",CLOSED\r\n" + OK)
		return
	}
	if resp, ok := defaults[name]; ok {
		r.emit(resp)
		return
	}
	r.emit(Error)
}

// Close stops the radio. Pending responses are still delivered, then Read
// returns io.EOF.
func (r *Radio) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.out)
		r.mu.Unlock()
	})
	return nil
}
