package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the C Data Interface boundary.
type Metrics struct {
	// Top level operations
	Exports  prometheus.Counter
	Imports  prometheus.Counter
	Borrows  prometheus.Counter
	Failures *prometheus.CounterVec

	// Release protocol, one observation per descriptor level
	Releases     *prometheus.CounterVec
	LiveExported prometheus.Gauge
	LiveImported prometheus.Gauge
}

// DefaultMetrics is registered on the default Prometheus registry.
var DefaultMetrics = NewMetrics("wake", prometheus.DefaultRegisterer)

// NewMetrics creates the boundary metrics under namespace and registers them
// on reg. A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Exports: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "exports_total",
			Help:      "Arrays exported into owned C descriptors",
		}),
		Imports: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "imports_total",
			Help:      "Arrays imported from C descriptors",
		}),
		Borrows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "borrows_total",
			Help:      "Arrays lent out as borrowed C descriptors",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "failures_total",
			Help:      "Rejected export or import attempts",
		}, []string{"op", "type"}),
		Releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "releases_total",
			Help:      "Release callbacks that transitioned a descriptor from live to released",
		}, []string{"descriptor"}),
		LiveExported: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "live_exported_arrays",
			Help:      "Exported array descriptor levels not yet released by the consumer",
		}),
		LiveImported: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "live_imported_arrays",
			Help:      "Imported arrays whose producer release is still pending",
		}),
	}
}

func (m *Metrics) fail(op string, err error) {
	t := "other"
	if be, ok := err.(*Error); ok {
		t = string(be.Type)
	}
	m.Failures.WithLabelValues(op, t).Inc()
}
