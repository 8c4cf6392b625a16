package dash

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	"github.com/embeddedgo/esp8266"
	"github.com/embeddedgo/esp8266/esptest"
	"github.com/embeddedgo/esp8266/uart"
)

var parseFrameTests = []struct {
	in  string
	out []uint32
	err error
}{
	{"70,7080,0,254,68,C0,78\r\n", []uint32{0x70, 0x7080, 0, 0x254, 0x68, 0xc0, 0x78}, nil},
	{" ff , 1 ", []uint32{0xff, 1}, nil},
	{"FFFFFFFF", []uint32{0xffffffff}, nil},
	{"\r\n", nil, ErrEmptyFrame},
	{"1,,2", nil, ErrBadFrame},
	{"1,xyz", nil, ErrBadFrame},
	{"100000000", nil, ErrBadFrame},
}

func TestParseFrame(t *testing.T) {
	for _, test := range parseFrameTests {
		out, err := ParseFrame(test.in)
		if !errors.Is(err, test.err) {
			t.Errorf("%q: err = %v, want %v", test.in, err, test.err)
			continue
		}
		if !reflect.DeepEqual(out, test.out) {
			t.Errorf("%q -> %v, want %v", test.in, out, test.out)
		}
	}
}

func TestFormatFrame(t *testing.T) {
	got := string(FormatFrame([]uint32{0x70, 0x7080, 0, 0xc0}))
	if got != "70,7080,0,C0\r\n" {
		t.Fatalf("FormatFrame = %q", got)
	}
}

func TestAddr(t *testing.T) {
	if a := Addr("192.168.1.50", DefaultPort); a != "192.168.1.50:8080" {
		t.Fatalf("Addr = %s", a)
	}
}

func TestSend(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	values := []uint32{0x70, 0x7080, 0, 0x254}
	if err = Send(ctx, pc.LocalAddr().String(), values); err != nil {
		t.Fatalf("Send: %v", err)
	}
	pc.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseFrame(string(buf[:n]))
	if err != nil || !reflect.DeepEqual(got, values) {
		t.Fatalf("received %q -> %v, %v", buf[:n], got, err)
	}
}

func ipd(id int, data string) string {
	return "\r\n+IPD," + strconv.Itoa(id) + "," + strconv.Itoa(len(data)) + ":" + data
}

func TestServe(t *testing.T) {
	r := esptest.New()
	p := uart.New(r, r, uart.WithTimeout(20*time.Millisecond))
	defer p.Close()
	dev := esp8266.NewDevice("esp0", p, esp8266.WithLogger(testr.New(t)))
	srv := NewServer(dev, 0, testr.New(t))
	if err := srv.Listen(DefaultPort); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	frames := make(chan []uint32, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- srv.Serve(ctx, SinkFunc(func(v []uint32) error {
			frames <- v
			return nil
		}))
	}()
	r.Inject(ipd(0, "zz,1\r\n"))
	r.Inject("WIFI DISCONNECT\r\n")
	r.Inject(ipd(0, "1,2,3"))
	r.Inject(ipd(0, "70,7080\r\n"))
	r.Inject("0,CLOSED\r\n")
	r.Inject(ipd(1, "5,6\r\n"))

	for _, want := range [][]uint32{{1, 2, 3}, {0x70, 0x7080}} {
		select {
		case got := <-frames:
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("frame %v, want %v", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %v not received", want)
		}
	}
	time.Sleep(200 * time.Millisecond)
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Serve = %v", err)
	}
	select {
	case v := <-frames:
		t.Fatalf("frame for other connection applied: %v", v)
	default:
	}
	if n := len(r.Commands()); n != 2 {
		t.Fatalf("link not reopened: %q", r.Commands())
	}
}
