package httpd

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/embeddedgo/esp8266"
)

// maxHeader limits the part of a request kept in memory. The rest is read and
// dropped.
const maxHeader = 2048

// Saver stores submitted credentials.
type Saver interface {
	Save(ssid, password string) error
}

// Server answers provisioning requests. The ESP8266 must already run its TCP
// server in multiple connection mode (AT+CIPMUX=1, AT+CIPSERVER=1,80).
type Server struct {
	dev   *esp8266.Device
	store Saver
	log   logr.Logger
	idle  time.Duration
}

// DefaultIdle is the time a client connection may stay silent before the
// server closes it.
const DefaultIdle = 10 * time.Second

// NewServer returns a server that saves accepted credentials in store.
func NewServer(dev *esp8266.Device, store Saver, log logr.Logger) *Server {
	return &Server{dev: dev, store: store, log: log.WithName("httpd"), idle: DefaultIdle}
}

// SetIdle sets the idle timeout of client connections.
func (s *Server) SetIdle(d time.Duration) {
	s.idle = d
}

// ServeOne waits (for one receive timeout) for a client to connect and
// services its requests until all connections are closed. It reports whether
// new credentials were saved. A non-nil error means the credentials could not
// be stored or ctx was cancelled.
func (s *Server) ServeOne(ctx context.Context) (saved bool, err error) {
	var buf [256]byte
	n, err := s.dev.ReceiveLine(buf[:])
	if err != nil || n == 0 {
		return false, nil
	}
	line := string(buf[:n])
	if id, ev := s.dev.Track(line); ev != esp8266.NoEvent {
		if ev != esp8266.Connected {
			return false, nil
		}
		s.log.V(1).Info("client connected", "conn", id, "open", s.dev.OpenConns())
	} else if saved, err = s.packet(line); err != nil || saved {
		return saved, err
	}
	deadline := time.Now().Add(s.idle)
	for s.dev.OpenConns() > 0 {
		if err = ctx.Err(); err != nil {
			return saved, err
		}
		n, err = s.dev.ReceiveLine(buf[:])
		if err != nil {
			if time.Now().After(deadline) {
				s.closeAll()
				return saved, nil
			}
			continue
		}
		line = string(buf[:n])
		if id, ev := s.dev.Track(line); ev != esp8266.NoEvent {
			s.log.V(1).Info("connection event", "conn", id, "closed", ev == esp8266.Closed)
			continue
		}
		ok, err := s.packet(line)
		if err != nil {
			return saved, err
		}
		saved = saved || ok
		deadline = time.Now().Add(s.idle)
	}
	return saved, nil
}

func (s *Server) closeAll() {
	// Connection ids are single digits.
	for id := 0; id < 10; id++ {
		if s.dev.IsOpen(id) {
			s.log.V(1).Info("closing idle connection", "conn", id)
			s.dev.Close(id)
		}
	}
}

// packet handles a line that may start an +IPD notification.
func (s *Server) packet(line string) (saved bool, err error) {
	id, length, rest, perr := esp8266.ParseIPD(line)
	if perr != nil {
		return false, nil
	}
	// The data after the colon counts towards the length, and so does the
	// CRLF stripped by ReceiveLine.
	remaining := length - len(rest) - 2
	if remaining < 0 {
		remaining = 0
	}
	req, ok := ParseRequestLine(rest)
	if !ok {
		s.dev.Discard(remaining)
		return false, nil
	}
	s.log.Info("request", "conn", id, "method", req.Method.String(), "uri", req.URI)
	switch req.Route() {
	case RouteForm:
		s.dev.Discard(remaining)
		s.respond(id, headerOK, formPage)
	case RouteTest:
		s.dev.Discard(remaining)
		s.respond(id, headerOK, acceptPage)
	case RouteConnect:
		return s.connect(id, s.body(remaining))
	default:
		s.dev.Discard(remaining)
		s.respond(id, headerNotFound, "")
	}
	return false, nil
}

// body returns the request body. It reads the rest of the first packet (the
// headers) and takes the body from it if the client sent everything at once.
// Otherwise the body arrives in the next +IPD packet.
func (s *Server) body(remaining int) string {
	keep := remaining
	if keep > maxHeader {
		keep = maxHeader
	}
	hdr := make([]byte, 2, 2+keep)
	copy(hdr, "\r\n") // the CRLF that ended the request line
	hdr = hdr[:2+keep]
	got := receiveFull(s.dev, hdr[2:])
	hdr = hdr[:2+got]
	if got == keep {
		s.dev.Discard(remaining - keep)
	}
	i := bytes.Index(hdr, []byte("\r\n\r\n"))
	if i >= 0 {
		if body := hdr[i+4:]; len(body) != 0 {
			return string(body)
		}
		if contentLength(string(hdr[:i])) == 0 {
			return ""
		}
	}
	id, n, err := s.dev.ReceiveFraming()
	if err != nil {
		s.log.V(1).Info("no request body", "error", err.Error())
		return ""
	}
	if n > maxHeader {
		s.dev.Discard(n - maxHeader)
		n = maxHeader
	}
	body := make([]byte, n)
	body = body[:receiveFull(s.dev, body)]
	s.log.V(1).Info("request body", "conn", id, "len", n)
	return string(body)
}

func receiveFull(dev *esp8266.Device, p []byte) int {
	n := 0
	for n < len(p) {
		k := dev.Receive(p[n:])
		if k == 0 {
			break
		}
		n += k
	}
	return n
}

// contentLength returns the Content-Length header value or -1.
func contentLength(headers string) int {
	for _, h := range strings.Split(headers, "\r\n") {
		name, value, ok := strings.Cut(h, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err == nil {
				return n
			}
		}
	}
	return -1
}

func (s *Server) connect(id int, body string) (bool, error) {
	form, err := DecodeConnectForm(body)
	if err != nil {
		p, _ := err.(Problem)
		s.log.Info("rejected credentials", "conn", id, "problem", int(p))
		s.respond(id, headerOK, problemPage(p))
		return false, nil
	}
	if err = s.store.Save(form.Network, form.Password); err != nil {
		s.log.Error(err, "cannot save credentials", "network", form.Network)
		s.respond(id, headerOK, problemPage(ProblemStore))
		return false, err
	}
	s.log.Info("saved credentials", "network", form.Network)
	s.respond(id, headerOK, acceptPage)
	return true, nil
}

func (s *Server) respond(id int, header, page string) {
	if err := s.dev.Send(id, []byte(header), []byte(page)); err != nil {
		s.log.Error(err, "cannot send response", "conn", id)
	}
	if err := s.dev.Close(id); err != nil {
		s.log.V(1).Info("cannot close connection", "conn", id, "error", err.Error())
	}
}
