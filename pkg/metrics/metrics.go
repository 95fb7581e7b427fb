// Package metrics exposes the exporter's Prometheus metrics.
// All metrics are defined in their respective packages (auth, client, cache,
// pipeline) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP exposition and a reference for all
// available metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Token Metrics (pkg/auth, pkg/client):
//   - odata_token_requests_total{result} (Counter): Token requests by result (ok, error)
//   - odata_token_refreshes_total (Counter): Refreshes after a rejected credential
//
// Request Metrics (pkg/client):
//   - odata_requests_total{endpoint, status} (Counter): Resource requests by endpoint and HTTP status
//   - odata_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - odata_pages_total{endpoint} (Counter): Result pages read by endpoint
//   - odata_errors_total{class} (Counter): Errors by class (auth, client, server, network, decode)
//
// Cache Metrics (pkg/cache):
//   - odata_cache_hits_total (Counter): Page cache hits
//   - odata_cache_misses_total (Counter): Page cache misses
//   - odata_cache_size_bytes (Gauge): Bytes written to the page cache
//   - odata_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pipeline Metrics (pkg/pipeline):
//   - odata_pipeline_runs_total{result} (Counter): Runs by result (ok, error)
//   - odata_pipeline_duration_seconds (Histogram): Run duration
//   - odata_rows_fetched{endpoint} (Gauge): Rows fetched per endpoint in the last run
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(odata_cache_hits_total[5m])) /
//   (sum(rate(odata_cache_hits_total[5m])) + sum(rate(odata_cache_misses_total[5m])))
//
//   # Failed runs in the last day
//   increase(odata_pipeline_runs_total{result="error"}[1d])
//
//   # Credential churn
//   rate(odata_token_refreshes_total[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(odata_request_duration_seconds_bucket[5m]))
