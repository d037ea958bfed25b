// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EntriesTotal counts admitted pool entries, partitioned by sport.
	EntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipredict_entries_total",
		Help: "Total number of pool entries admitted",
	}, []string{"sport"})

	// EntryRejections counts rejected join attempts by reason.
	EntryRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipredict_entry_rejections_total",
		Help: "Join attempts rejected, by reason",
	}, []string{"reason"})

	// SettlementsTotal counts settled pools, partitioned by sport.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipredict_settlements_total",
		Help: "Total number of pools settled",
	}, []string{"sport"})

	// PayoutAmountTotal accumulates the amount credited to winners.
	PayoutAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipredict_payout_amount_total",
		Help: "Cumulative amount credited to winners",
	})

	// HouseAmountTotal accumulates the amount retained by the house.
	HouseAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipredict_house_amount_total",
		Help: "Cumulative amount retained by the house",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipredict_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipredict_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipredict_http_request_duration_seconds",
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

		// Use the route pattern for the path label to avoid high
		// cardinality. The pattern is only known after routing, so read
		// it once the handler has run.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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
