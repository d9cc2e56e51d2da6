package view

import (
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/shared/id"
	"github.com/GriffinCanCode/valkyrie/internal/view/middleware"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Frame types on /ws.
const (
	MsgNativeSend = "native_send"
	MsgPing       = "ping"
	MsgHello      = "hello"
	MsgEval       = "eval"
	MsgReload     = "reload"
	MsgTitle      = "title"
	MsgPong       = "pong"
	MsgError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.IsLoopbackOrigin(origin)
	},
}

// inbound is a frame sent by the page.
type inbound struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// outbound is a frame sent to the page.
type outbound struct {
	Type     string `json:"type"`
	JS       string `json:"js,omitempty"`
	Title    string `json:"title,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// client is one connected page. Frames are written by a single goroutine.
type client struct {
	id      id.ClientID
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	closeOnce sync.Once
}

// enqueue reports false when the client's buffer is full.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			// Drain until unregister closes send.
			for range c.send {
			}
			return
		}
	}
}

func (c *client) stop() {
	c.closeOnce.Do(func() { close(c.send) })
}

// handleSocket upgrades the request and relays frames until the page goes
// away.
func (w *Web) handleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	cl := &client{
		id:   id.NewClientID(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	if w.cfg.RateLimited {
		cl.limiter = middleware.NewLimiter(w.cfg.RateLimit)
	}
	go cl.writeLoop()

	w.register(cl)
	defer w.unregister(cl)

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Debug("websocket read error", zap.String("client_id", cl.id.String()), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			w.sendError(cl, "invalid frame")
			continue
		}
		w.metrics.RecordViewMessage("inbound", msg.Type)

		switch msg.Type {
		case MsgNativeSend:
			if cl.limiter != nil && !cl.limiter.Allow() {
				w.sendError(cl, "rate limit exceeded")
				continue
			}
			w.mu.RLock()
			receive := w.receiver
			w.mu.RUnlock()
			if receive == nil {
				w.logger.Warn("native_send before receiver bound", zap.String("client_id", cl.id.String()))
				continue
			}
			receive(ctx, msg.Payload)
		case MsgPing:
			w.send(cl, outbound{Type: MsgPong})
		default:
			w.sendError(cl, "unknown frame type: "+msg.Type)
		}
	}
}

// register greets cl and hands it any held frames.
func (w *Web) register(cl *client) {
	w.mu.Lock()
	hello := outbound{Type: MsgHello, ClientID: cl.id.String(), Title: w.title}
	cl.enqueue(w.encode(hello))
	flushed := 0
	for _, data := range w.backlog {
		if !cl.enqueue(data) {
			break
		}
		flushed++
	}
	w.backlog = w.backlog[flushed:]
	w.clients[cl.id.String()] = cl
	w.mu.Unlock()

	w.metrics.ViewClientConnected()
	w.logger.Info("page connected", zap.String("client_id", cl.id.String()), zap.Int("flushed", flushed))
}

func (w *Web) unregister(cl *client) {
	w.mu.Lock()
	delete(w.clients, cl.id.String())
	w.mu.Unlock()
	cl.stop()

	w.metrics.ViewClientDisconnected()
	w.logger.Info("page disconnected", zap.String("client_id", cl.id.String()))
}

func (w *Web) send(cl *client, msg outbound) {
	if data := w.encode(msg); data != nil && cl.enqueue(data) {
		w.metrics.RecordViewMessage("outbound", msg.Type)
	}
}

func (w *Web) sendError(cl *client, message string) {
	w.send(cl, outbound{Type: MsgError, Message: message})
}
