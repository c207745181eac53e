// Package metrics holds the Prometheus collectors. The API exports them on
// /api/debug/metrics; the sweeper process serves them with NewServer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notism"

var (
	authOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "operations_total",
		Help:      "Session operations by name and outcome.",
	}, []string{"operation", "outcome"})

	tokensDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token_cleanup",
		Name:      "deleted_total",
		Help:      "Tokens removed by the cleanup sweeper.",
	}, []string{"kind"})

	cleanupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token_cleanup",
		Name:      "runs_total",
		Help:      "Cleanup cycles by outcome.",
	}, []string{"outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveAuth counts one session operation.
func ObserveAuth(operation string, err error) {
	authOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveCleanup counts one sweeper cycle and the rows it removed.
func ObserveCleanup(refreshDeleted, resetDeleted int64, err error) {
	cleanupRuns.WithLabelValues(outcome(err)).Inc()
	tokensDeleted.WithLabelValues("refresh").Add(float64(refreshDeleted))
	tokensDeleted.WithLabelValues("password_reset").Add(float64(resetDeleted))
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// NewServer returns a server exposing Handler on /metrics at addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
