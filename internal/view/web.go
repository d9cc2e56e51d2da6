package view

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/assets"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/view/middleware"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed transport.js
var transportJS string

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	clientBuffer    = 64
)

// WebConfig configures the web view.
type WebConfig struct {
	// Addr is the listen address. Empty means Run serves no socket and the
	// router is only reachable through Handler.
	Addr         string
	Gzip         bool
	DispatchSize int
	RateLimit    middleware.RateLimitConfig
	RateLimited  bool
	Development  bool
	// ID is reported by /health.
	ID string
}

// Web serves the page to a browser and relays traffic over a WebSocket.
type Web struct {
	*dispatcher

	cfg     WebConfig
	store   *assets.Store
	router  *gin.Engine
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	title    string
	html     string
	addr     string
	receiver Receiver
	clients  map[string]*client
	// backlog holds evals produced while no page is connected.
	backlog [][]byte
}

// NewWeb creates the web view. Store, logger and metrics may be nil.
func NewWeb(cfg WebConfig, store *assets.Store, logger *logging.Logger, metrics *monitoring.Metrics) *Web {
	logger = logging.OrNop(logger).Named("view")
	w := &Web{
		dispatcher: newDispatcher(cfg.DispatchSize, logger),
		cfg:        cfg,
		store:      store,
		logger:     logger,
		metrics:    metrics,
		clients:    make(map[string]*client),
	}
	w.router = w.setupRouter()
	return w
}

func (w *Web) setupRouter() *gin.Engine {
	if !w.cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(w.logger))
	router.Use(monitoring.Middleware(w.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if w.cfg.RateLimited {
		router.Use(middleware.RateLimit(w.cfg.RateLimit))
		w.logger.Info("rate limiting enabled",
			zap.Int("rps", w.cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", w.cfg.RateLimit.Burst))
	}

	router.GET("/", w.handleIndex)
	router.GET("/ws", w.handleSocket)
	router.GET("/health", w.handleHealth)
	if reg := w.metrics.Registry(); reg != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	router.NoRoute(gin.WrapH(w.assetHandler()))

	return router
}

// Handler exposes the router, mainly for httptest.
func (w *Web) Handler() http.Handler {
	return w.router
}

// Addr returns the bound address once Run is listening.
func (w *Web) Addr() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.addr
}

// Run listens on the configured address and drives the UI loop. Connected
// pages are disconnected when it returns.
func (w *Web) Run(ctx context.Context) error {
	var (
		srv  *http.Server
		fail chan error
	)
	if w.cfg.Addr != "" {
		ln, err := net.Listen("tcp", w.cfg.Addr)
		if err != nil {
			w.Terminate()
			return fmt.Errorf("failed to listen on %s: %w", w.cfg.Addr, err)
		}
		w.mu.Lock()
		w.addr = ln.Addr().String()
		w.mu.Unlock()

		srv = &http.Server{Handler: w.router, ReadHeaderTimeout: 10 * time.Second}
		fail = make(chan error, 1)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fail <- err
			}
		}()
		w.logger.Info("view listening", zap.String("url", "http://"+ln.Addr().String()))
	}

	err := w.run(ctx, fail)

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if serr := srv.Shutdown(sctx); serr != nil {
			w.logger.Warn("view shutdown incomplete", zap.Error(serr))
		}
		cancel()
	}
	w.disconnectAll()

	if err != nil {
		return fmt.Errorf("view server failed: %w", err)
	}
	return nil
}

// Eval sends js to every connected page, or holds it until one connects.
func (w *Web) Eval(js string) {
	w.broadcast(outbound{Type: MsgEval, JS: js}, true)
}

func (w *Web) SetTitle(title string) {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
	w.broadcast(outbound{Type: MsgTitle, Title: title}, false)
}

// SetHTML replaces the document and reloads connected pages. The page
// transport is injected so the document can reach native_send.
func (w *Web) SetHTML(html string) {
	doc, err := InjectScript(html, transportJS)
	if err != nil {
		w.logger.Error("failed to inject transport", zap.Error(err))
		doc = html
	}
	w.mu.Lock()
	w.html = doc
	w.mu.Unlock()
	w.broadcast(outbound{Type: MsgReload}, false)
}

func (w *Web) Bind(fn Receiver) {
	w.mu.Lock()
	w.receiver = fn
	w.mu.Unlock()
}

// Clients returns the number of connected pages.
func (w *Web) Clients() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.clients)
}

func (w *Web) handleIndex(c *gin.Context) {
	w.mu.RLock()
	doc := w.html
	w.mu.RUnlock()
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

func (w *Web) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"id":      w.cfg.ID,
		"clients": w.Clients(),
	})
}

// assetHandler serves Asset Store entries by request path.
func (w *Web) assetHandler() http.Handler {
	var h http.Handler = http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if w.store == nil || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			http.NotFound(rw, r)
			return
		}
		asset, ok := w.store.Read(r.URL.Path)
		if !ok {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", asset.MIME)
		rw.Header().Set("Cache-Control", "no-cache")
		rw.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			rw.Write(asset.Bytes)
		}
	})
	if w.cfg.Gzip {
		h = gzhttp.GzipHandler(h)
	}
	return h
}

func (w *Web) encode(msg outbound) []byte {
	data, err := sonic.Marshal(msg)
	if err != nil {
		w.logger.Error("failed to encode view message", zap.String("type", msg.Type), zap.Error(err))
		return nil
	}
	return data
}

// broadcast queues msg on every client. With hold set and no client
// connected, the frame is kept for the next page to connect.
func (w *Web) broadcast(msg outbound, hold bool) {
	data := w.encode(msg)
	if data == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.clients) == 0 {
		if hold {
			if len(w.backlog) >= cap(w.dispatcher.jobs) {
				w.backlog = w.backlog[1:]
			}
			w.backlog = append(w.backlog, data)
		}
		return
	}
	for _, cl := range w.clients {
		if cl.enqueue(data) {
			w.metrics.RecordViewMessage("outbound", msg.Type)
		} else {
			w.logger.Warn("dropping frame for slow client",
				zap.String("client_id", cl.id.String()),
				zap.String("type", msg.Type))
		}
	}
}

func (w *Web) disconnectAll() {
	w.mu.Lock()
	clients := make([]*client, 0, len(w.clients))
	for _, cl := range w.clients {
		clients = append(clients, cl)
	}
	w.mu.Unlock()

	for _, cl := range clients {
		cl.conn.Close()
	}
}
