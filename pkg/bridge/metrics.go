// Copyright 2024-2026 Aiku AI

package bridge

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	matrixEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_matrix_events_total",
			Help: "Matrix events received by the admin core.",
		},
		[]string{"type"},
	)

	adminCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_admin_commands_total",
			Help: "Admin room commands by handling result.",
		},
		[]string{"result"},
	)

	adminNoticesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_admin_notices_total",
		Help: "Notices sent into admin rooms.",
	})

	authGrantsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_auth_grants_total",
		Help: "Completed identity checks.",
	})
)

var metricsOnce sync.Once

// initMetrics registers the collectors in the default registry. Called from
// Bridge.Run so tests that construct components directly never register.
func initMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(matrixEventsTotal, adminCommandsTotal, adminNoticesTotal, authGrantsTotal)
	})
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
