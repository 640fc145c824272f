// Package metrics exposes the crawler's Prometheus instrumentation: fetch
// counts and latency, in-flight concurrency, CAS login outcomes, and
// packager rotations.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfinder_fetches_total",
			Help: "Total number of page fetches attempted, labeled by outcome status",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openfinder_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	BytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfinder_bytes_total",
			Help: "Total response bytes downloaded across all fetches",
		},
	)

	InflightFetches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openfinder_inflight_fetches",
			Help: "Number of fetches currently admitted and in flight",
		},
	)

	FrontierKnownHashes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openfinder_frontier_known_hashes",
			Help: "Number of distinct URL hashes the frontier has ever observed",
		},
	)

	CASLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfinder_cas_logins_total",
			Help: "Total CAS handshake attempts, labeled by outcome",
		},
		[]string{"result"},
	)

	PackageRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfinder_package_rotations_total",
			Help: "Total number of artifact package directory rotations",
		},
	)
)

// RecordFetch updates fetch-related metrics for one completed attempt.
// status is either an HTTP status code or "error" for a transport failure.
func RecordFetch(statusCode int, bodyLen int, duration time.Duration, transportErr bool) {
	status := strconv.Itoa(statusCode)
	if transportErr {
		status = "error"
	}
	FetchesTotal.WithLabelValues(status).Inc()
	FetchDuration.Observe(duration.Seconds())
	BytesTotal.Add(float64(bodyLen))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
// The server runs in a background goroutine and must be stopped via
// Server.Stop() to release resources and avoid leaks.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
