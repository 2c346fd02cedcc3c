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

	nodeStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "anvilctl",
			Subsystem: "node",
			Name:      "starts_total",
			Help:      "Number of successful node launches.",
		},
	)
	nodeStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "anvilctl",
			Subsystem: "node",
			Name:      "stops_total",
			Help:      "Number of stop attempts that reached the Stopped state.",
		},
	)
	snapshotCaptures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anvilctl",
			Subsystem: "snapshot",
			Name:      "captures_total",
			Help:      "State-dump attempts against the live node, by result.",
		}, []string{"result"},
	)
	snapshotBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "anvilctl",
			Subsystem: "snapshot",
			Name:      "bytes",
			Help:      "Size of the last captured state snapshot in bytes.",
		},
	)
	nodeUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "anvilctl",
			Subsystem: "node",
			Name:      "up",
			Help:      "1 when the recorded node process probes alive, else 0.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{nodeStarts, nodeStops, snapshotCaptures, snapshotBytes, nodeUp}
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
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncStart() {
	if regOK.Load() {
		nodeStarts.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		nodeStops.Inc()
	}
}

func ObserveCapture(ok bool, bytes int) {
	if !regOK.Load() {
		return
	}
	if ok {
		snapshotCaptures.WithLabelValues("ok").Inc()
		snapshotBytes.Set(float64(bytes))
	} else {
		snapshotCaptures.WithLabelValues("error").Inc()
	}
}

func SetNodeUp(up bool) {
	if !regOK.Load() {
		return
	}
	if up {
		nodeUp.Set(1)
	} else {
		nodeUp.Set(0)
	}
}
