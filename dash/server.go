package dash

import (
	"context"
	"strings"

	"github.com/go-logr/logr"

	"github.com/embeddedgo/esp8266"
)

// Sink receives the values of every valid frame.
type Sink interface {
	Apply(values []uint32) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(values []uint32) error

func (f SinkFunc) Apply(values []uint32) error { return f(values) }

// LogSink logs the received values.
type LogSink struct {
	Log logr.Logger
}

func (s LogSink) Apply(values []uint32) error {
	s.Log.Info("frame", "values", values)
	return nil
}

// maxFrame limits the datagram size kept in memory.
const maxFrame = 512

// Server receives frames from a UDP link of the ESP8266.
type Server struct {
	dev  *esp8266.Device
	log  logr.Logger
	id   int
	port int
}

// NewServer returns a server that uses the connection id of dev.
func NewServer(dev *esp8266.Device, id int, log logr.Logger) *Server {
	return &Server{dev: dev, id: id, log: log.WithName("dash")}
}

// Listen opens the UDP link on port.
func (s *Server) Listen(port int) error {
	if err := s.dev.ListenUDP(s.id, port); err != nil {
		return err
	}
	s.port = port
	s.log.Info("listening", "conn", s.id, "port", port)
	return nil
}

// Serve applies received frames to sink until ctx is cancelled. Malformed
// frames are logged and skipped. If the module reports the link closed it is
// opened again.
func (s *Server) Serve(ctx context.Context, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, ok := s.receiveHeader()
		if !ok || hdr == "" {
			continue
		}
		if !strings.HasPrefix(hdr, "+IPD,") {
			if id, ev := s.dev.Track(hdr); ev == esp8266.Closed && id == s.id {
				s.log.Info("link closed, reopening", "conn", id)
				if err := s.dev.ListenUDP(s.id, s.port); err != nil {
					s.log.Error(err, "reopen")
				}
			}
			continue
		}
		id, length, _, err := esp8266.ParseIPD(hdr + ":")
		if err != nil {
			s.log.V(1).Info("bad data header", "header", hdr)
			continue
		}
		keep := length
		if keep > maxFrame {
			keep = maxFrame
		}
		buf := make([]byte, keep)
		n := 0
		for n < keep {
			k := s.dev.Receive(buf[n:])
			if k == 0 {
				break
			}
			n += k
		}
		if n == keep {
			s.dev.Discard(length - keep)
		}
		if id != s.id && id >= 0 {
			s.log.V(1).Info("data for other connection", "conn", id, "len", length)
			continue
		}
		values, err := ParseFrame(string(buf[:n]))
		if err != nil {
			s.log.Info("dropped frame", "error", err.Error())
			continue
		}
		if err = sink.Apply(values); err != nil {
			s.log.Error(err, "apply frame")
		}
	}
}

// receiveHeader reads a notification line or the part of an +IPD header
// before the colon. Leading CR/LF are skipped.
func (s *Server) receiveHeader() (string, bool) {
	var (
		c   [1]byte
		buf [64]byte
		n   int
	)
	for {
		if s.dev.Receive(c[:]) == 0 {
			return "", false
		}
		switch c[0] {
		case '\n':
			if n == 0 {
				continue
			}
		case '\r':
			if n == 0 {
				continue
			}
			return string(buf[:n]), true
		case ':':
			if n >= 5 && string(buf[:5]) == "+IPD," {
				return string(buf[:n]), true
			}
		}
		if n < len(buf) {
			buf[n] = c[0]
			n++
		}
	}
}
