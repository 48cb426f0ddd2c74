// Package metrics provides Prometheus metrics for sessions and transfers.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkfetch_requests_total",
			Help: "Total number of completed remote requests",
		},
		[]string{"op", "result"},
	)

	transfersStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkfetch_transfers_started_total",
			Help: "Total number of transfers that reported a start event",
		},
	)

	transfersFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkfetch_transfers_finished_total",
			Help: "Total number of transfers that reached a terminal state",
		},
		[]string{"result"},
	)

	transfersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkfetch_transfers_active",
			Help: "Number of transfers currently running",
		},
	)

	transferBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkfetch_transfer_bytes_total",
			Help: "Total bytes downloaded",
		},
	)

	overQuotaEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkfetch_over_quota_events_total",
			Help: "Total number of over-quota temporary errors",
		},
	)

	temporaryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkfetch_temporary_errors_total",
			Help: "Total number of temporary transfer errors by code",
		},
		[]string{"code"},
	)
)

// RecordRequest records a finished request
func RecordRequest(op, result string) {
	requestsTotal.WithLabelValues(op, result).Inc()
}

// TransferStarted records a transfer start and marks it active
func TransferStarted() {
	transfersStarted.Inc()
	transfersActive.Inc()
}

// TransferFinished records a terminal transfer. wasActive must match a prior TransferStarted.
func TransferFinished(result string, wasActive bool) {
	transfersFinished.WithLabelValues(result).Inc()
	if wasActive {
		transfersActive.Dec()
	}
}

// AddTransferBytes records newly downloaded bytes
func AddTransferBytes(n int64) {
	if n > 0 {
		transferBytes.Add(float64(n))
	}
}

// RecordOverQuota records an over-quota event
func RecordOverQuota() {
	overQuotaEvents.Inc()
}

// RecordTemporaryError records a temporary transfer error
func RecordTemporaryError(code string) {
	temporaryErrors.WithLabelValues(code).Inc()
}

// Handler returns the /metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
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
		return server.Shutdown(shutdownCtx)
	}
}
