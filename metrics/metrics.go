// Package metrics exposes Prometheus instrumentation for the Vigil backend:
// a standalone metrics listener plus the domain counters the services
// increment.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecoveryDistributions counts successful distribute operations.
	RecoveryDistributions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_recovery_distributions_total",
		Help: "Number of successful guardian share distributions.",
	})

	// RecoverySessionsCreated counts opened recovery sessions.
	RecoverySessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_recovery_sessions_created_total",
		Help: "Number of recovery sessions opened.",
	})

	// RecoveryApprovals counts accepted guardian approvals.
	RecoveryApprovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_recovery_approvals_total",
		Help: "Number of accepted guardian approvals.",
	})

	// SwitchesCreated counts armed dead-man's switches.
	SwitchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_dms_switches_created_total",
		Help: "Number of dead-man's switches created.",
	})

	// SwitchesTriggered counts switches released by the sweep.
	SwitchesTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_dms_switches_triggered_total",
		Help: "Number of switches triggered and released.",
	})

	// CheckIns counts liveness check-ins.
	CheckIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_dms_checkins_total",
		Help: "Number of liveness check-ins.",
	})

	// SweepDuration observes wall-clock time of sweep runs.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vigil_dms_sweep_duration_seconds",
		Help:    "Duration of dead-man's switch sweep runs.",
		Buckets: prometheus.DefBuckets,
	})

	// SweepErrors counts per-switch failures recorded during sweeps.
	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_dms_sweep_errors_total",
		Help: "Number of per-switch errors recorded by the sweep.",
	})
)

// NewSweepTimer starts a timer observing into SweepDuration.
func NewSweepTimer() *prometheus.Timer {
	return prometheus.NewTimer(SweepDuration)
}

// MetricsServer serves the Prometheus scrape endpoint on its own listener so
// operational traffic never shares a port with the public API.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving scrapes until Shutdown.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
