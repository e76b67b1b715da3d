// Package metrics provides Prometheus instrumentation for the auction
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BidsTotal counts bid submissions, partitioned by outcome
	// (accepted, or the rejection kind).
	BidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auctiond_bids_total",
		Help: "Total number of bid submissions",
	}, []string{"outcome"})

	// BidLatency tracks bid validation and persistence latency.
	BidLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auctiond_bid_latency_seconds",
		Help:    "Bid submission latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RoundsResolved counts resolved rounds by outcome (sold, unsold).
	RoundsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auctiond_rounds_resolved_total",
		Help: "Total number of resolved rounds",
	}, []string{"outcome"})

	// SequenceRetries counts open-outcry sequence collisions resolved by
	// the internal retry-with-refetch.
	SequenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auctiond_sequence_retries_total",
		Help: "Open-outcry sequence collisions retried",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auctiond_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// SnapshotPulls counts explicit state pulls issued when the channel
	// did not confirm a snapshot within the subscribe timeout.
	SnapshotPulls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auctiond_snapshot_pulls_total",
		Help: "Snapshots pulled explicitly on cold subscribe",
	})

	// BroadcastErrors counts failed channel publishes. Broadcast failure
	// never fails the originating bid.
	BroadcastErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auctiond_broadcast_errors_total",
		Help: "Failed event publishes",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auctiond_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auctiond_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
