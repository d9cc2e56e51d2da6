package view

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/assets"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/view/middleware"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type webEnv struct {
	web     *Web
	store   *assets.Store
	metrics *monitoring.Metrics
	server  *httptest.Server
}

func newWebEnv(t *testing.T, cfg WebConfig) *webEnv {
	t.Helper()
	cfg.Development = true
	env := &webEnv{
		store:   assets.NewStore(nil, nil),
		metrics: monitoring.NewMetrics(),
	}
	env.web = NewWeb(cfg, env.store, nil, env.metrics)
	env.server = httptest.NewServer(env.web.Handler())
	t.Cleanup(env.server.Close)
	runView(t, env.web)
	return env
}

func (e *webEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg outbound
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func writeFrame(t *testing.T, conn *websocket.Conn, msg inbound) {
	t.Helper()
	data, err := sonic.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestWebServesDocument(t *testing.T) {
	env := newWebEnv(t, WebConfig{})
	env.web.SetHTML("<html><head><title>App</title></head><body><h1>hi</h1></body></html>")

	resp, err := http.Get(env.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "<h1>hi</h1>")
	assert.Contains(t, string(body), "window.native_send")
}

func TestWebServesAssets(t *testing.T) {
	env := newWebEnv(t, WebConfig{Gzip: true})
	css := strings.Repeat("body { color: red; }\n", 200)
	env.store.Register("style/app.css", []byte(css), "text/css")

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/style/app.css", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, css, string(got))

	missing, err := http.Get(env.server.URL + "/nope.js")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestWebSocketRoundTrip(t *testing.T) {
	env := newWebEnv(t, WebConfig{})
	env.web.SetTitle("Demo")

	received := make(chan string, 1)
	env.web.Bind(func(_ context.Context, payload string) { received <- payload })

	conn := env.dial(t)
	hello := readFrame(t, conn)
	assert.Equal(t, MsgHello, hello.Type)
	assert.Equal(t, "Demo", hello.Title)
	assert.True(t, strings.HasPrefix(hello.ClientID, "cli_"))

	writeFrame(t, conn, inbound{Type: MsgNativeSend, Payload: `{"command":"ping"}`})
	select {
	case p := <-received:
		assert.Equal(t, `{"command":"ping"}`, p)
	case <-time.After(5 * time.Second):
		t.Fatal("payload never reached the receiver")
	}

	require.NoError(t, env.web.Dispatch(context.Background(), func() { env.web.Eval("window.x = 1;") }))
	msg := readFrame(t, conn)
	assert.Equal(t, MsgEval, msg.Type)
	assert.Equal(t, "window.x = 1;", msg.JS)

	writeFrame(t, conn, inbound{Type: MsgPing})
	assert.Equal(t, MsgPong, readFrame(t, conn).Type)

	writeFrame(t, conn, inbound{Type: "bogus"})
	assert.Equal(t, MsgError, readFrame(t, conn).Type)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ViewClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ViewMessages.WithLabelValues("inbound", MsgNativeSend)))
}

func TestWebHoldsEvalsUntilConnect(t *testing.T) {
	env := newWebEnv(t, WebConfig{})

	done := make(chan struct{})
	require.NoError(t, env.web.Dispatch(context.Background(), func() {
		env.web.Eval("first()")
		env.web.Eval("second()")
		close(done)
	}))
	<-done

	conn := env.dial(t)
	assert.Equal(t, MsgHello, readFrame(t, conn).Type)
	assert.Equal(t, "first()", readFrame(t, conn).JS)
	assert.Equal(t, "second()", readFrame(t, conn).JS)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := newWebEnv(t, WebConfig{
		RateLimited: true,
		RateLimit:   middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	})
	received := make(chan string, 4)
	env.web.Bind(func(_ context.Context, payload string) { received <- payload })

	conn := env.dial(t)
	readFrame(t, conn)

	writeFrame(t, conn, inbound{Type: MsgNativeSend, Payload: `{"n":1}`})
	writeFrame(t, conn, inbound{Type: MsgNativeSend, Payload: `{"n":2}`})

	msg := readFrame(t, conn)
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, "rate limit exceeded", msg.Message)
	assert.Equal(t, `{"n":1}`, <-received)
	assert.Empty(t, received)
}

func TestWebRejectsForeignOrigin(t *testing.T) {
	env := newWebEnv(t, WebConfig{})

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebReloadOnSetHTML(t *testing.T) {
	env := newWebEnv(t, WebConfig{})
	conn := env.dial(t)
	readFrame(t, conn)

	env.web.SetHTML("<p>new</p>")
	assert.Equal(t, MsgReload, readFrame(t, conn).Type)
}

func TestWebMetricsAndHealth(t *testing.T) {
	env := newWebEnv(t, WebConfig{ID: "instance-1"})

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "valkyrie_view_clients")

	resp, err = http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok","id":"instance-1","clients":0}`, string(body))
}

func TestWebRunListensAndStops(t *testing.T) {
	w := NewWeb(WebConfig{Addr: "127.0.0.1:0", Development: true}, nil, nil, nil)
	w.SetHTML("<p>up</p>")

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool { return w.Addr() != "" }, 5*time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + w.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	w.Terminate()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestWebRunListenError(t *testing.T) {
	taken := httptest.NewServer(http.NotFoundHandler())
	defer taken.Close()

	w := NewWeb(WebConfig{Addr: taken.Listener.Addr().String()}, nil, nil, nil)
	assert.Error(t, w.Run(context.Background()))
	assert.ErrorIs(t, w.Dispatch(context.Background(), func() {}), ErrTerminated)
}
