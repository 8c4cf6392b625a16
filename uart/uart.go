// Package uart moves bytes between the host and the ESP8266 radio.
//
// Received bytes are appended to a ring buffer by a background goroutine that
// plays the role of the receive interrupt: it never blocks on the consumer and
// drops bytes (setting the overrun flag) if the ring is full. Receive polls the
// ring with a per-call timeout.
package uart

import (
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/embeddedgo/esp8266/ring"
)

// Default values of the Port parameters.
const (
	DefaultRxSize  = 512
	DefaultTimeout = 500 * time.Millisecond
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Port is an interrupt style UART transport.
type Port struct {
	r       io.Reader
	w       io.Writer
	rx      *ring.Ring
	timeout time.Duration
	log     logr.Logger

	mu      sync.Mutex
	readErr error
	done    chan struct{}
}

// Option configures a Port.
type Option func(*Port)

// WithRxSize sets the receive ring capacity (power of two).
func WithRxSize(n int) Option {
	return func(p *Port) { p.rx = ring.New(n) }
}

// WithTimeout sets the per-call Transmit and Receive timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Port) { p.timeout = d }
}

// WithLogger sets the logger used for transport errors and (at V(1)) for the
// raw traffic.
func WithLogger(log logr.Logger) Option {
	return func(p *Port) { p.log = log }
}

// New returns a Port that reads from r and writes to w. It starts the receive
// goroutine which runs until r returns an error.
func New(r io.Reader, w io.Writer, opts ...Option) *Port {
	p := &Port{
		r:       r,
		w:       w,
		timeout: DefaultTimeout,
		log:     logr.Discard(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rx == nil {
		p.rx = ring.New(DefaultRxSize)
	}
	go receiveLoop(p)
	return p
}

func receiveLoop(p *Port) {
	defer close(p.done)
	var buf [64]byte
	for {
		n, err := p.r.Read(buf[:])
		for _, b := range buf[:n] {
			p.rx.Put(b)
		}
		if err != nil {
			if err != io.EOF {
				p.log.Error(err, "UART receive stopped")
			}
			p.mu.Lock()
			p.readErr = err
			p.mu.Unlock()
			return
		}
	}
}

// Transmit writes p to the UART. If the underlying writer supports write
// deadlines the write is bounded by the port timeout. Errors are not returned:
// the radio protocol treats commands as fire-and-forget and the caller notices
// a lost command by the missing response.
func (p *Port) Transmit(buf []byte) {
	if wd, ok := p.w.(writeDeadliner); ok {
		wd.SetWriteDeadline(time.Now().Add(p.timeout))
	}
	p.log.V(1).Info("tx", "data", string(buf))
	if _, err := p.w.Write(buf); err != nil {
		p.log.V(1).Info("transmit failed", "error", err.Error())
	}
}

// Receive reads len(buf) bytes or less if the port timeout elapses first. It
// returns the number of bytes read.
func (p *Port) Receive(buf []byte) int {
	n := p.rx.Read(buf)
	if n == len(buf) {
		return n
	}
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	for n < len(buf) {
		select {
		case <-p.rx.Readable():
			n += p.rx.Read(buf[n:])
		case <-timer.C:
			return n + p.rx.Read(buf[n:])
		}
	}
	return n
}

// Buffered returns the number of received bytes ready to be read.
func (p *Port) Buffered() int {
	return p.rx.Len()
}

// Clear discards all received data and clears the overrun flag.
func (p *Port) Clear() {
	p.rx.Clear()
}

// Overrun reports whether received data was lost because the ring was full.
func (p *Port) Overrun() bool {
	return p.rx.Overrun()
}

// Err returns the error that stopped the receive goroutine, if any.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readErr
}

// Close closes the underlying reader and writer if they implement io.Closer
// and waits for the receive goroutine to exit.
func (p *Port) Close() error {
	var err error
	if c, ok := p.r.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := p.w.(io.Closer); ok && any(p.w) != any(p.r) {
		if e := c.Close(); err == nil {
			err = e
		}
	}
	<-p.done
	return err
}
