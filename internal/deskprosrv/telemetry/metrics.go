// Package telemetry holds the prometheus collectors for tenant routing and
// provisioning.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LabelSuccess = "success"
	LabelFailure = "failure"
)

type Metrics struct {
	ProvisioningSagas    *prometheus.CounterVec
	ProvisioningDuration *prometheus.HistogramVec
	GateRejections       *prometheus.CounterVec
	RegistryColdLoads    *prometheus.CounterVec
	RegisteredTenants    prometheus.Gauge
	ProviderOrphans      prometheus.Counter
}

func NewMetrics() *Metrics {
	const (
		namespace = "deskpro"
		subsystem = "tenants"
	)

	return &Metrics{
		ProvisioningSagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sagas_total",
			Help:      "Count of tenant creation and deletion sagas by outcome",
		}, []string{"saga", "result"}),

		ProvisioningDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "saga_duration_seconds",
			Help:      "Histogram of time spent running a saga",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"saga", "result"}),

		GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gate_rejections_total",
			Help:      "Count of requests rejected before reaching a tenant scoped handler",
		}, []string{"reason"}),

		RegistryColdLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "registry_cold_loads_total",
			Help:      "Count of alias registrations loaded from the control plane on a cache miss",
		}, []string{"result"}),

		RegisteredTenants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "registered_aliases",
			Help:      "Number of tenant aliases in the resource registry",
		}),

		ProviderOrphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_orphans_total",
			Help:      "Count of provider databases left behind by a failed compensation",
		}),
	}
}

func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ProvisioningSagas,
		m.ProvisioningDuration,
		m.GateRejections,
		m.RegistryColdLoads,
		m.RegisteredTenants,
		m.ProviderOrphans,
	}
}

// Default is the process wide set of collectors.
var Default = NewMetrics()

var registerOnce sync.Once

// Register adds the default collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(Default.PrometheusCollectors()...)
	})
}
