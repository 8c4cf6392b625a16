// Package httpd serves the Wi-Fi provisioning pages over the TCP server of the
// ESP8266.
//
// It is not a general HTTP implementation. It understands the request line,
// finds the end of the headers and the body of the connect form, and answers
// every request with a complete response followed by closing the connection.
package httpd

import "strings"

type Method uint8

const (
	MethodInvalid Method = iota
	MethodGet
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	}
	return "invalid"
}

// Request is the parsed request line.
type Request struct {
	Method Method
	URI    string
}

// ParseRequestLine parses "GET <uri> ..." or "POST <uri> ...".
func ParseRequestLine(line string) (req Request, ok bool) {
	switch {
	case strings.HasPrefix(line, "GET "):
		req.Method = MethodGet
		line = line[4:]
	case strings.HasPrefix(line, "POST "):
		req.Method = MethodPost
		line = line[5:]
	default:
		return req, false
	}
	if i := strings.IndexByte(line, ' '); i >= 0 {
		line = line[:i]
	}
	req.URI = line
	return req, true
}

type Route uint8

const (
	RouteNotFound Route = iota
	RouteForm           // GET /
	RouteTest           // GET /test/
	RouteConnect        // POST /connect/
)

// Route returns the page selected by the request.
func (r Request) Route() Route {
	switch {
	case r.Method == MethodGet && r.URI == "/":
		return RouteForm
	case r.Method == MethodGet && r.URI == "/test/":
		return RouteTest
	case r.Method == MethodPost && r.URI == "/connect/":
		return RouteConnect
	}
	return RouteNotFound
}
