// Package metrics exposes the Prometheus registry used by the parallel scan packages.
// Metrics are defined in their owning packages (scan, dynamo, checkpoint) with
// promauto.With(Registry) and served from Gatherer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Registry is the registerer every scan package registers its metrics with.
	Registry prometheus.Registerer = prometheus.DefaultRegisterer

	// Gatherer exposes what was registered with Registry.
	Gatherer prometheus.Gatherer = prometheus.DefaultGatherer
)

// Handler returns the HTTP handler serving Gatherer.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Scan Metrics (pkg/scan):
//   - ddbscan_requests_total{table, outcome} (Counter): Scan requests by outcome (ok, error)
//   - ddbscan_request_duration_seconds{table} (Histogram): Scan request duration
//   - ddbscan_pages_total{table} (Counter): Pages handed to the consumer
//   - ddbscan_items_total{table} (Counter): Items handed to the consumer
//   - ddbscan_inflight_requests (Gauge): Scan requests currently in flight
//   - ddbscan_resubmissions_total{table} (Counter): Continuation requests submitted
//
// Client Metrics (pkg/dynamo):
//   - ddbscan_client_errors_total{class} (Counter): Failed Scan calls by error class
//
// Checkpoint Metrics (pkg/checkpoint):
//   - ddbscan_checkpoint_writes_total (Counter): Segment positions written to Redis
//   - ddbscan_checkpoint_errors_total{operation} (Counter): Checkpoint operation errors
//
// Example Prometheus Queries:
//
//   # Items per second
//   sum(rate(ddbscan_items_total[1m])) by (table)
//
//   # Filter selectivity (pages carrying few items)
//   rate(ddbscan_items_total[5m]) / rate(ddbscan_pages_total[5m])
//
//   # Throttling
//   rate(ddbscan_client_errors_total{class="throttling"}[5m])
//
//   # P95 Scan latency
//   histogram_quantile(0.95, rate(ddbscan_request_duration_seconds_bucket[5m]))
