package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. Counters are plain atomics so hot
// paths never touch a mutex; Prometheus reads them lazily through GaugeFuncs.
type Metrics struct {
	// Pipeline counters
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesDropped   atomic.Uint64
	ReadErrors      atomic.Uint64
	ProcessErrors   atomic.Uint64

	// Detection counters
	SignsDetected atomic.Uint64
	OCRReads      atomic.Uint64
	OCRMisses     atomic.Uint64
	Confirmations atomic.Uint64

	// Latency tracking
	ProcessLatencyMs atomic.Uint64

	// WebSocket tracking
	ActiveClients   atomic.Uint64
	TotalClients    atomic.Uint64
	StateBroadcasts atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerCollectors()
	return m
}

func (m *Metrics) registerCollectors() {
	counters := []struct {
		name string
		help string
		src  *atomic.Uint64
	}{
		{"signwatch_frames_read_total", "Total frames read from the video source", &m.FramesRead},
		{"signwatch_frames_processed_total", "Total frames run through detection", &m.FramesProcessed},
		{"signwatch_frames_dropped_total", "Total frames dropped by rate limiting", &m.FramesDropped},
		{"signwatch_read_errors_total", "Total video source read errors", &m.ReadErrors},
		{"signwatch_process_errors_total", "Total frame processing errors", &m.ProcessErrors},
		{"signwatch_signs_detected_total", "Total candidate sign regions found", &m.SignsDetected},
		{"signwatch_ocr_reads_total", "Total successful speed limit reads", &m.OCRReads},
		{"signwatch_ocr_misses_total", "Total crops the reader could not interpret", &m.OCRMisses},
		{"signwatch_confirmations_total", "Total speed limit confirmations", &m.Confirmations},
		{"signwatch_process_latency_ms", "Most recent per-frame processing latency in milliseconds", &m.ProcessLatencyMs},
		{"signwatch_ws_active_clients", "Number of connected WebSocket clients", &m.ActiveClients},
		{"signwatch_ws_total_clients", "Total WebSocket clients connected", &m.TotalClients},
		{"signwatch_state_broadcasts_total", "Total state change broadcasts", &m.StateBroadcasts},
	}
	for _, c := range counters {
		src := c.src
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(src.Load()) },
		))
	}
}

// UpdateProcessLatency records how long the last frame took to process.
func (m *Metrics) UpdateProcessLatency(d time.Duration) {
	m.ProcessLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on its own listener.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
