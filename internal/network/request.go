package network

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

var (
	// ErrInvalidURL is returned for URLs the client cannot address.
	ErrInvalidURL = errors.New("network: invalid url")
	// ErrInvalidHeader is returned for header names or values that would
	// corrupt the request framing.
	ErrInvalidHeader = errors.New("network: invalid header")
)

// Header is one caller-supplied request header. Order is preserved.
type Header struct {
	Name  string
	Value string
}

// managed headers are written by the client itself.
var managedHeaders = map[string]bool{
	"host":           true,
	"connection":     true,
	"content-length": true,
}

// Request describes one HTTP request.
type Request struct {
	Method  string
	Scheme  string
	Host    string
	Port    int
	Path    string
	Headers []Header
	Body    []byte
}

// NewRequest parses rawURL. A URL without a scheme is treated as http.
// The path defaults to "/" and the port to 80 (443 for https).
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	port := 80
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: bad port %q", ErrInvalidURL, p)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return &Request{
		Method: strings.ToUpper(method),
		Scheme: scheme,
		Host:   u.Hostname(),
		Port:   port,
		Path:   path,
		Body:   bytes.Clone(body),
	}, nil
}

// AddHeader appends a header after validating it.
func (r *Request) AddHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidHeader, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: value for %q", ErrInvalidHeader, name)
	}
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
	return nil
}

// Address returns host:port for dialing.
func (r *Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Serialize renders the request as written on the wire: request line, Host,
// Connection: close, caller headers, Content-Length when a body is present,
// a blank line and the body.
func (r *Request) Serialize() []byte {
	var b bytes.Buffer

	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.Path)
	b.WriteString(" HTTP/1.1\r\n")

	b.WriteString("Host: ")
	if strings.Contains(r.Host, ":") {
		b.WriteString("[" + r.Host + "]")
	} else {
		b.WriteString(r.Host)
	}
	if r.Port != 80 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(r.Port))
	}
	b.WriteString("\r\n")
	b.WriteString("Connection: close\r\n")

	for _, h := range r.Headers {
		if managedHeaders[strings.ToLower(h.Name)] {
			continue
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}

	if len(r.Body) > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n")
	}

	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.Bytes()
}
