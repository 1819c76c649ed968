// Package metrics provides Prometheus instrumentation for the quote service.
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
	// QuotesTotal counts quotes computed, partitioned by kind
	// (bet, cashout, winnings, refund) and result (ok, rejected, error).
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stxbets_quotes_total",
		Help: "Total number of quotes computed",
	}, []string{"kind", "result"})

	// QuoteLatency tracks quote computation latency by kind.
	QuoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stxbets_quote_latency_seconds",
		Help:    "Quote computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// ActiveMarkets tracks the number of open markets in the snapshot store.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stxbets_active_markets",
		Help: "Number of currently open markets",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stxbets_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// SnapshotsIngested counts chain snapshots accepted from the indexer.
	SnapshotsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stxbets_snapshots_ingested_total",
		Help: "Chain state snapshots ingested",
	}, []string{"kind"})

	// SnapshotRejections counts snapshots rejected for invariant violations.
	SnapshotRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stxbets_snapshot_rejections_total",
		Help: "Snapshots rejected by invariant validation",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stxbets_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stxbets_http_request_duration_seconds",
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

		// Use the route pattern for path label to avoid high cardinality.
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
