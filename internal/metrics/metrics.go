package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	roleStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "starts_total",
			Help:      "Number of successful role starts.",
		}, []string{"role"},
	)
	roleStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "stops_total",
			Help:      "Number of role stops.",
		}, []string{"role"},
	)
	roleRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "restarts_total",
			Help:      "Number of role restarts.",
		}, []string{"role"},
	)
	treeKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "tree_kills_total",
			Help:      "Number of process-tree kill attempts.",
		},
	)
	portKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "port_kills_total",
			Help:      "Number of by-port reclamation kills.",
		},
	)
	siblingRecoveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "sibling_recoveries_total",
			Help:      "Number of transparent sibling relaunches after a targeted restart.",
		},
	)
	runningRoles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devserve",
			Subsystem: "lifecycle",
			Name:      "running_roles",
			Help:      "Current number of tracked running role processes.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{roleStarts, roleStops, roleRestarts, treeKills, portKills, siblingRecoveries, runningRoles}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until
// Register has been called.

func IncStart(role string) {
	if regOK.Load() {
		roleStarts.WithLabelValues(role).Inc()
	}
}

func IncStop(role string) {
	if regOK.Load() {
		roleStops.WithLabelValues(role).Inc()
	}
}

func IncRestart(role string) {
	if regOK.Load() {
		roleRestarts.WithLabelValues(role).Inc()
	}
}

func IncTreeKill() {
	if regOK.Load() {
		treeKills.Inc()
	}
}

func IncPortKill() {
	if regOK.Load() {
		portKills.Inc()
	}
}

func IncSiblingRecovery() {
	if regOK.Load() {
		siblingRecoveries.Inc()
	}
}

func SetRunningRoles(n int) {
	if regOK.Load() {
		runningRoles.Set(float64(n))
	}
}
