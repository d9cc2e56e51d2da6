package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one runtime instance.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Bridge metrics
	BridgeMessages *prometheus.CounterVec
	BridgeDropped  *prometheus.CounterVec

	// Network metrics
	FetchTotal     *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	SocketsActive  prometheus.Gauge
	SocketBytes    *prometheus.CounterVec
	SocketWrites   *prometheus.CounterVec
	NetworkPending prometheus.Gauge

	// Script metrics
	ScriptErrors *prometheus.CounterVec
	ModuleLoads  *prometheus.CounterVec
	TimersFired  prometheus.Counter

	// View metrics
	ViewClients         prometheus.Gauge
	ViewMessages        *prometheus.CounterVec
	ViewRequestsTotal   *prometheus.CounterVec
	ViewRequestDuration *prometheus.HistogramVec

	// Asset metrics
	AssetsRegistered prometheus.Gauge
}

// NewMetrics creates metrics registered on a private registry so several
// runtimes (and tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_bridge_messages_total",
				Help: "Messages carried by the bridge",
			},
			[]string{"direction"},
		),
		BridgeDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_bridge_dropped_total",
				Help: "Bridge messages dropped before reaching a handler",
			},
			[]string{"reason"},
		),

		FetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_fetch_total",
				Help: "Completed fetch operations",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "valkyrie_fetch_duration_seconds",
				Help:    "Fetch duration from resolution to completion",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		SocketsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "valkyrie_sockets_active",
				Help: "Connected scripted sockets",
			},
		),
		SocketBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_socket_bytes_total",
				Help: "Bytes moved over scripted sockets",
			},
			[]string{"direction"},
		),
		SocketWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_socket_writes_total",
				Help: "Socket write operations by result",
			},
			[]string{"status"},
		),
		NetworkPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "valkyrie_network_pending",
				Help: "In-flight asynchronous I/O operations",
			},
		),

		ScriptErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_script_errors_total",
				Help: "Script exceptions caught at an evaluation boundary",
			},
			[]string{"boundary"},
		),
		ModuleLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_module_loads_total",
				Help: "require() calls by result",
			},
			[]string{"result"},
		),
		TimersFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "valkyrie_timers_fired_total",
				Help: "One-shot timers that fired",
			},
		),

		ViewClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "valkyrie_view_clients",
				Help: "Connected view clients",
			},
		),
		ViewMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_view_messages_total",
				Help: "Messages exchanged with view clients",
			},
			[]string{"direction", "type"},
		),
		ViewRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valkyrie_view_requests_total",
				Help: "HTTP requests served by the view",
			},
			[]string{"method", "route", "status"},
		),
		ViewRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "valkyrie_view_request_duration_seconds",
				Help:    "View HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AssetsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "valkyrie_assets_registered",
				Help: "Entries in the asset store",
			},
		),
	}
}

// Registry exposes the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordBridgeMessage counts a message in the given direction ("inbound", "outbound").
func (m *Metrics) RecordBridgeMessage(direction string) {
	if m == nil {
		return
	}
	m.BridgeMessages.WithLabelValues(direction).Inc()
}

// RecordBridgeDrop counts a dropped bridge message.
func (m *Metrics) RecordBridgeDrop(reason string) {
	if m == nil {
		return
	}
	m.BridgeDropped.WithLabelValues(reason).Inc()
}

// RecordFetch records one completed fetch.
func (m *Metrics) RecordFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(duration.Seconds())
}

// SocketOpened increments the active socket gauge.
func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.SocketsActive.Inc()
}

// SocketClosed decrements the active socket gauge.
func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.SocketsActive.Dec()
}

// RecordSocketBytes adds n bytes in direction ("read", "write").
func (m *Metrics) RecordSocketBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SocketBytes.WithLabelValues(direction).Add(float64(n))
}

// RecordSocketWrite counts a finished write.
func (m *Metrics) RecordSocketWrite(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SocketWrites.WithLabelValues(status).Inc()
}

// PendingAdd moves the in-flight I/O gauge by delta.
func (m *Metrics) PendingAdd(delta int) {
	if m == nil {
		return
	}
	m.NetworkPending.Add(float64(delta))
}

// RecordScriptError counts an exception caught at boundary.
func (m *Metrics) RecordScriptError(boundary string) {
	if m == nil {
		return
	}
	m.ScriptErrors.WithLabelValues(boundary).Inc()
}

// RecordModuleLoad counts a require() call.
func (m *Metrics) RecordModuleLoad(result string) {
	if m == nil {
		return
	}
	m.ModuleLoads.WithLabelValues(result).Inc()
}

// RecordTimerFired counts a fired timer.
func (m *Metrics) RecordTimerFired() {
	if m == nil {
		return
	}
	m.TimersFired.Inc()
}

// ViewClientConnected increments the view client gauge.
func (m *Metrics) ViewClientConnected() {
	if m == nil {
		return
	}
	m.ViewClients.Inc()
}

// ViewClientDisconnected decrements the view client gauge.
func (m *Metrics) ViewClientDisconnected() {
	if m == nil {
		return
	}
	m.ViewClients.Dec()
}

// RecordViewMessage counts a view message.
func (m *Metrics) RecordViewMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.ViewMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordViewRequest records one HTTP request served by the view.
func (m *Metrics) RecordViewRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ViewRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.ViewRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetAssetCount sets the asset gauge.
func (m *Metrics) SetAssetCount(n int) {
	if m == nil {
		return
	}
	m.AssetsRegistered.Set(float64(n))
}
