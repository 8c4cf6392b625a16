package httpd

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	"github.com/embeddedgo/esp8266"
	"github.com/embeddedgo/esp8266/credstore"
	"github.com/embeddedgo/esp8266/esptest"
	"github.com/embeddedgo/esp8266/uart"
)

var urlDecodeTests = []struct {
	in   string
	max  int
	out  string
	used int
	err  error
}{
	{"a b+c%2Dd", 63, "a b c-d", 9, nil},
	{"Secret%21&x=1", 63, "Secret!", 9, nil},
	{"My-Net.2G", 63, "My-Net.2G", 9, nil},
	{"abcdef", 3, "abc", 3, nil},
	{"ab\r\n", 63, "ab", 2, nil},
	{"bad%zz", 63, "", 3, ErrBadEscape},
	{"cut%4", 63, "", 3, ErrBadEscape},
}

func TestURLDecode(t *testing.T) {
	for _, test := range urlDecodeTests {
		out, n, err := URLDecode(test.in, test.max)
		if err != test.err {
			t.Errorf("%q: err = %v, want %v", test.in, err, test.err)
			continue
		}
		if out != test.out || n != test.used {
			t.Errorf("%q -> %q %d, want %q %d", test.in, out, n, test.out, test.used)
		}
	}
}

func TestGetPostParameter(t *testing.T) {
	body := "network=MyWifi&pw=Secret%21"
	if v, err := GetPostParameter(body, "pw", 63); err != nil || v != "Secret!" {
		t.Fatalf("pw = %q, %v", v, err)
	}
	if v, err := GetPostParameter(body, "network", 63); err != nil || v != "MyWifi" {
		t.Fatalf("network = %q, %v", v, err)
	}
	if _, err := GetPostParameter(body, "work", 63); err != ErrNoField {
		t.Fatalf("partial name matched: %v", err)
	}
	if _, err := GetPostParameter(body, "ssid", 63); err != ErrNoField {
		t.Fatalf("missing field: %v", err)
	}
}

func TestDecodeConnectForm(t *testing.T) {
	good := []struct {
		body          string
		network, pass string
	}{
		{"network=Home+Net&pw=&extra=1", "Home Net", ""},
		{"pw=s%3Dcret&network=Home", "Home", "s=cret"},
		{"extra=1&network=A&pw=B", "A", "B"},
	}
	for _, test := range good {
		form, err := DecodeConnectForm(test.body)
		if err != nil || form.Network != test.network || form.Password != test.pass {
			t.Errorf("%q: form = %+v, %v", test.body, form, err)
		}
	}
	tests := []struct {
		body string
		p    Problem
	}{
		{"", ProblemNetwork},
		{"pw=secret", ProblemNetwork},
		{"network=&pw=secret", ProblemNetwork},
		{"network=&pw=%G1", ProblemNetwork},
		{"network=%4&pw=secret", ProblemNetwork},
		{"network=Home", ProblemPassword},
		{"network=Home&pw=%G1", ProblemPassword},
	}
	for _, test := range tests {
		_, err := DecodeConnectForm(test.body)
		var p Problem
		if !errors.As(err, &p) || p != test.p {
			t.Errorf("%q: err = %v, want %v", test.body, err, test.p)
		}
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		route Route
	}{
		{"GET / HTTP/1.1", true, RouteForm},
		{"GET /test/ HTTP/1.1", true, RouteTest},
		{"POST /connect/ HTTP/1.1", true, RouteConnect},
		{"GET /connect/ HTTP/1.1", true, RouteNotFound},
		{"GET /favicon.ico HTTP/1.1", true, RouteNotFound},
		{"PUT / HTTP/1.1", false, RouteNotFound},
	}
	for _, test := range tests {
		req, ok := ParseRequestLine(test.line)
		if ok != test.ok || req.Route() != test.route {
			t.Errorf("%q -> %+v %t, route %d", test.line, req, ok, req.Route())
		}
	}
}

type env struct {
	radio *esptest.Radio
	flash *credstore.MemFlash
	store *credstore.Store
	srv   *Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	r := esptest.New()
	p := uart.New(r, r, uart.WithTimeout(100*time.Millisecond))
	t.Cleanup(func() { p.Close() })
	dev := esp8266.NewDevice("esp0", p, esp8266.WithLogger(testr.New(t)))
	f := credstore.NewMemFlash(credstore.DefaultPageSize)
	store, err := credstore.New(f)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(dev, store, testr.New(t))
	srv.SetIdle(300 * time.Millisecond)
	return &env{radio: r, flash: f, store: store, srv: srv}
}

// ipd frames data the way the module reports received TCP data.
func ipd(id int, data string) string {
	return "\r\n+IPD," + strconv.Itoa(id) + "," + strconv.Itoa(len(data)) + ":" + data
}

func TestServeForm(t *testing.T) {
	e := newEnv(t)
	e.radio.Inject("0,CONNECT\r\n")
	e.radio.Inject(ipd(0, "GET / HTTP/1.1\r\nHost: 192.168.4.1\r\n\r\n"))
	saved, err := e.srv.ServeOne(context.Background())
	if err != nil || saved {
		t.Fatalf("ServeOne = %t, %v", saved, err)
	}
	sent := e.radio.Sent()
	if len(sent) != 1 || sent[0] != headerOK+formPage {
		t.Fatalf("sent = %q", sent)
	}
	cmds := e.radio.Commands()
	if cmds[len(cmds)-1] != "+CIPCLOSE=0" {
		t.Fatalf("commands = %q", cmds)
	}
}

func TestServeNotFound(t *testing.T) {
	e := newEnv(t)
	e.radio.Inject("2,CONNECT\r\n")
	e.radio.Inject(ipd(2, "GET /favicon.ico HTTP/1.1\r\n\r\n"))
	if _, err := e.srv.ServeOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sent := e.radio.Sent(); len(sent) != 1 || sent[0] != headerNotFound {
		t.Fatalf("sent = %q", sent)
	}
}

const connectBody = "network=MyWifi&pw=Secret%21"

func checkStored(t *testing.T, store *credstore.Store, ssid, pw string) {
	t.Helper()
	rec, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Valid() || rec.SSID != ssid || rec.Password != pw {
		t.Fatalf("stored %+v", rec)
	}
}

func TestServeConnect(t *testing.T) {
	e := newEnv(t)
	e.radio.Inject("0,CONNECT\r\n")
	e.radio.Inject(ipd(0, "POST /connect/ HTTP/1.1\r\nContent-Length: "+
		strconv.Itoa(len(connectBody))+"\r\n\r\n"+connectBody))
	saved, err := e.srv.ServeOne(context.Background())
	if err != nil || !saved {
		t.Fatalf("ServeOne = %t, %v", saved, err)
	}
	checkStored(t, e.store, "MyWifi", "Secret!")
	if sent := e.radio.Sent(); len(sent) != 1 || sent[0] != headerOK+acceptPage {
		t.Fatalf("sent = %q", sent)
	}
}

func TestServeConnectSplit(t *testing.T) {
	e := newEnv(t)
	e.radio.Inject("1,CONNECT\r\n")
	e.radio.Inject(ipd(1, "POST /connect/ HTTP/1.1\r\nHost: 192.168.4.1\r\nContent-Length: "+
		strconv.Itoa(len(connectBody))+"\r\n\r\n"))
	e.radio.Inject(ipd(1, connectBody))
	saved, err := e.srv.ServeOne(context.Background())
	if err != nil || !saved {
		t.Fatalf("ServeOne = %t, %v", saved, err)
	}
	checkStored(t, e.store, "MyWifi", "Secret!")
}

func TestServeConnectProblem(t *testing.T) {
	tests := []struct {
		body    string
		problem string
	}{
		{"network=MyWifi", "Problem 2"},
		{"network=MyWifi&pw=%G1", "Problem 2"},
		{"network=&pw=secret", "Problem 1"},
		{"pw=secret", "Problem 1"},
	}
	for _, test := range tests {
		e := newEnv(t)
		if err := e.store.Save("Home", "old"); err != nil {
			t.Fatal(err)
		}
		before, err := e.store.Load()
		if err != nil {
			t.Fatal(err)
		}
		page := bytes.Clone(e.flash.Page)
		e.radio.Inject("0,CONNECT\r\n")
		e.radio.Inject(ipd(0, "POST /connect/ HTTP/1.1\r\n\r\n"+test.body))
		saved, err := e.srv.ServeOne(context.Background())
		if err != nil || saved {
			t.Fatalf("%q: ServeOne = %t, %v", test.body, saved, err)
		}
		if sent := e.radio.Sent(); len(sent) != 1 || !strings.Contains(sent[0], test.problem) {
			t.Fatalf("%q: sent = %q", test.body, sent)
		}
		after, err := e.store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if after != before {
			t.Errorf("%q: record %+v, was %+v", test.body, after, before)
		}
		if !bytes.Equal(e.flash.Page, page) {
			t.Errorf("%q: flash page modified", test.body)
		}
	}
}

func TestServeConnectStoreFailure(t *testing.T) {
	e := newEnv(t)
	e.flash.ProgramErr = errors.New("flash locked")
	e.radio.Inject("0,CONNECT\r\n")
	e.radio.Inject(ipd(0, "POST /connect/ HTTP/1.1\r\n\r\n"+connectBody))
	saved, err := e.srv.ServeOne(context.Background())
	if err == nil || saved {
		t.Fatalf("ServeOne = %t, %v", saved, err)
	}
	if sent := e.radio.Sent(); len(sent) != 1 || !strings.Contains(sent[0], "Problem 3") {
		t.Fatalf("sent = %q", sent)
	}
}

func TestServeIdle(t *testing.T) {
	e := newEnv(t)
	e.radio.Inject("3,CONNECT\r\n")
	start := time.Now()
	saved, err := e.srv.ServeOne(context.Background())
	if err != nil || saved {
		t.Fatalf("ServeOne = %t, %v", saved, err)
	}
	if time.Since(start) < 300*time.Millisecond {
		t.Fatal("returned before the idle timeout")
	}
	cmds := e.radio.Commands()
	if len(cmds) != 1 || cmds[0] != "+CIPCLOSE=3" {
		t.Fatalf("commands = %q", cmds)
	}
}

func TestServeNothing(t *testing.T) {
	e := newEnv(t)
	saved, err := e.srv.ServeOne(context.Background())
	if err != nil || saved {
		t.Fatalf("ServeOne = %t, %v", saved, err)
	}
}
