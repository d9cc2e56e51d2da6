package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/shared/id"
	"go.uber.org/zap"
)

// Config tunes the network stack.
type Config struct {
	DialTimeout time.Duration
	ReadBuffer  int
}

// DefaultConfig returns the defaults used when a field is zero.
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		ReadBuffer:  64 * 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = d.ReadBuffer
	}
	return c
}

// Client performs one-shot HTTP/1.1 requests over raw TCP.
type Client struct {
	cfg      Config
	resolver *net.Resolver
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// NewClient creates a client. Logger and metrics may be nil.
func NewClient(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics) *Client {
	return &Client{
		cfg:      cfg.withDefaults(),
		resolver: net.DefaultResolver,
		logger:   logging.OrNop(logger).Named("http"),
		metrics:  metrics,
	}
}

// Fetch performs req on its own goroutine and resolves the returned future
// exactly once.
func (c *Client) Fetch(ctx context.Context, req *Request) *Future[*Response] {
	f, resolve := NewFuture[*Response]()
	go func() {
		resolve(c.Do(ctx, req))
	}()
	return f
}

// Do performs req and blocks until the peer closes the connection. It never
// returns nil: resolution and connection failures yield ZeroResponse.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	start := time.Now()
	reqID := id.NewRequestID()
	log := c.logger.With(
		zap.String("request_id", reqID.String()),
		zap.String("method", req.Method),
		zap.String("host", req.Host),
		zap.String("path", req.Path),
	)

	resp, outcome, err := c.do(ctx, req)
	elapsed := time.Since(start)
	c.metrics.RecordFetch(outcome, elapsed)

	if err != nil {
		log.Debug("fetch failed", zap.String("outcome", outcome), zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		log.Debug("fetch complete", zap.Int("status", resp.Status), zap.Int("bytes", len(resp.Body)), zap.Duration("elapsed", elapsed))
	}
	return resp
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, string, error) {
	if req.Scheme != "" && req.Scheme != "http" {
		return ZeroResponse(), "unsupported", fmt.Errorf("scheme %q not supported", req.Scheme)
	}

	ip, err := c.resolve(ctx, req.Host)
	if err != nil {
		return ZeroResponse(), "resolve_error", err
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(req.Port)))
	if err != nil {
		return ZeroResponse(), "connect_error", err
	}
	defer conn.Close()

	// Unblock the read loop if the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(req.Serialize()); err != nil {
		// Keep reading: the peer may still have answered.
		c.logger.Debug("request write failed", zap.Error(err))
	}

	parser := NewParser()
	buf := make([]byte, c.cfg.ReadBuffer)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
		}
		if err != nil {
			break
		}
	}

	resp := parser.Finish()
	if !parser.HeadersParsed() {
		return resp, "no_headers", errors.New("connection closed before headers")
	}
	return resp, "ok", nil
}

// resolve prefers an IPv4 address.
func (c *Client) resolve(ctx context.Context, host string) (net.IP, error) {
	ips, err := c.resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
