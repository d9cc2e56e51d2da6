package network

import (
	"bytes"
	"strconv"
	"strings"
)

var headerTerminator = []byte("\r\n\r\n")

// Response is a completed HTTP response.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// ZeroResponse is the result of a request that never produced headers.
func ZeroResponse() *Response {
	return &Response{Headers: map[string]string{}, Body: []byte{}}
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Parser accumulates response bytes and locates the header block as soon as
// the full terminator has arrived, whatever the read boundaries were.
type Parser struct {
	buf       []byte
	scanFrom  int
	headerEnd int
	status    int
	headers   map[string]string
}

// NewParser creates a parser with no input.
func NewParser() *Parser {
	return &Parser{headerEnd: -1, headers: map[string]string{}}
}

// Feed appends one chunk. The chunk is copied.
func (p *Parser) Feed(chunk []byte) {
	p.buf = append(p.buf, chunk...)
	if p.headerEnd >= 0 {
		return
	}

	idx := bytes.Index(p.buf[p.scanFrom:], headerTerminator)
	if idx < 0 {
		// The terminator may straddle this chunk and the next one.
		p.scanFrom = max(0, len(p.buf)-len(headerTerminator)+1)
		return
	}

	p.headerEnd = p.scanFrom + idx
	p.parseHead(string(p.buf[:p.headerEnd]))
}

func (p *Parser) parseHead(head string) {
	statusLine, rest, _ := strings.Cut(head, "\r\n")

	fields := strings.Fields(statusLine)
	if len(fields) >= 2 {
		if code, err := strconv.Atoi(fields[1]); err == nil {
			p.status = code
		}
	}

	for _, line := range strings.Split(rest, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if prev, dup := p.headers[key]; dup {
			value = prev + ", " + value
		}
		p.headers[key] = value
	}
}

// HeadersParsed reports whether the header terminator has been seen.
func (p *Parser) HeadersParsed() bool {
	return p.headerEnd >= 0
}

// Status returns the parsed status code, or 0 before headers are parsed.
func (p *Parser) Status() int {
	return p.status
}

// Body returns the body accumulated so far, or nil before headers are parsed.
func (p *Parser) Body() []byte {
	if p.headerEnd < 0 {
		return nil
	}
	return p.buf[p.headerEnd+len(headerTerminator):]
}

// Finish produces the response for end of stream. If headers never
// arrived the zero response is returned.
func (p *Parser) Finish() *Response {
	if p.headerEnd < 0 {
		return ZeroResponse()
	}
	return &Response{
		Status:  p.status,
		Headers: p.headers,
		Body:    bytes.Clone(p.Body()),
	}
}
