package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the aggregator's own instrumentation.
type Metrics struct {
	CycleDuration       prometheus.Histogram
	CyclesTotal         prometheus.Counter
	CycleFailures       prometheus.Counter
	SourceUp            *prometheus.GaugeVec
	SourceFetchFailures *prometheus.CounterVec
	SiteActive          *prometheus.GaugeVec
	SiteSuppressed      *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dcalerts_cycle_duration_seconds",
			Help:    "Duration of one full refresh cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcalerts_cycles_total",
			Help: "Completed refresh cycles, successful or not.",
		}),
		CycleFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcalerts_cycle_failures_total",
			Help: "Refresh cycles that failed to persist a snapshot.",
		}),
		SourceUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcalerts_source_up",
			Help: "Whether the last fetch from a source succeeded.",
		}, []string{"source"}),
		SourceFetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dcalerts_source_fetch_failures_total",
			Help: "Fetch cycles in which a source exhausted its retries.",
		}, []string{"source"}),
		SiteActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcalerts_site_active_alerts",
			Help: "Active (unsilenced) alerts per site from the latest cycle.",
		}, []string{"site"}),
		SiteSuppressed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dcalerts_site_suppressed_alerts",
			Help: "Suppressed alerts per site from the latest cycle.",
		}, []string{"site"}),
	}
}
