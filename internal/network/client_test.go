package network

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOnce accepts one connection, captures the request head and replies
// with chunks, pausing between them.
func serveOnce(t *testing.T, chunks ...string) (addr string, got <-chan *http.Request) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	reqs := make(chan *http.Request, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err == nil {
			io.Copy(io.Discard, req.Body)
			reqs <- req
		}
		for _, c := range chunks {
			conn.Write([]byte(c))
			time.Sleep(5 * time.Millisecond)
		}
	}()
	return ln.Addr().String(), reqs
}

func TestFetchOK(t *testing.T) {
	addr, reqs := serveOnce(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello")

	req, err := NewRequest("GET", "http://"+addr+"/greet", nil)
	require.NoError(t, err)

	resp, err := NewClient(Config{}, nil, nil).Fetch(context.Background(), req).Await(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("hello"), resp.Body)

	sent := <-reqs
	assert.Equal(t, "/greet", sent.URL.Path)
	assert.True(t, sent.Close)
}

func TestFetchSplitHeaderBlock(t *testing.T) {
	addr, _ := serveOnce(t,
		"HTTP/1.1 404 Not",
		" Found\r\nX-A: 1\r",
		"\n\r",
		"\nmissing",
	)

	req, err := NewRequest("GET", "http://"+addr+"/", nil)
	require.NoError(t, err)

	resp := NewClient(Config{ReadBuffer: 4}, nil, nil).Do(context.Background(), req)
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "missing", resp.Text())
	assert.Equal(t, "1", resp.Headers["x-a"])
}

func TestFetchSendsBody(t *testing.T) {
	addr, reqs := serveOnce(t, "HTTP/1.1 204 No Content\r\n\r\n")

	req, err := NewRequest("POST", "http://"+addr+"/items", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, req.AddHeader("X-Kind", "test"))

	resp := NewClient(Config{}, nil, nil).Do(context.Background(), req)
	assert.Equal(t, 204, resp.Status)

	sent := <-reqs
	assert.Equal(t, "POST", sent.Method)
	assert.Equal(t, int64(7), sent.ContentLength)
	assert.Equal(t, "test", sent.Header.Get("X-Kind"))
}

func TestFetchConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	req, err := NewRequest("GET", "http://127.0.0.1:"+strconv.Itoa(port)+"/", nil)
	require.NoError(t, err)

	resp := NewClient(Config{}, nil, nil).Do(context.Background(), req)
	assert.Equal(t, 0, resp.Status)
	assert.Empty(t, resp.Body)
	assert.Empty(t, resp.Headers)
}

func TestFetchResolutionFailure(t *testing.T) {
	req, err := NewRequest("GET", "http://host.invalid/", nil)
	require.NoError(t, err)

	resp := NewClient(Config{}, nil, nil).Do(context.Background(), req)
	assert.Equal(t, 0, resp.Status)
	assert.Empty(t, resp.Body)
}

func TestFetchHTTPSUnsupported(t *testing.T) {
	req, err := NewRequest("GET", "https://127.0.0.1/", nil)
	require.NoError(t, err)

	resp := NewClient(Config{}, nil, nil).Do(context.Background(), req)
	assert.Equal(t, 0, resp.Status)
}

func TestFetchPeerClosesBeforeHeaders(t *testing.T) {
	addr, _ := serveOnce(t, "HTTP/1.1 200 OK\r\n")

	req, err := NewRequest("GET", "http://"+addr+"/", nil)
	require.NoError(t, err)

	resp := NewClient(Config{}, nil, nil).Do(context.Background(), req)
	assert.Equal(t, 0, resp.Status)
	assert.Empty(t, resp.Body)
}

func TestFetchCancelledContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept and hold the connection open without replying.
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(5 * time.Second)
		}
	}()

	req, err := NewRequest("GET", "http://"+ln.Addr().String()+"/", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	future := NewClient(Config{}, nil, nil).Fetch(ctx, req)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-future.Done():
		resp, _ := future.Value()
		assert.Equal(t, 0, resp.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not complete after cancel")
	}
}
