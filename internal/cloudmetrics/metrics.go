package cloudmetrics

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the aggregate product counters pushed to the cloud
// control plane. They live on a private registry so the tenant-facing
// /metrics endpoint never exposes them.
type metrics struct {
	documentsProcessed  *prometheus.CounterVec
	invoicesIssued      *prometheus.CounterVec
	screeningsCompleted *prometheus.CounterVec
	engineErrors        *prometheus.CounterVec
	activeOrganizations prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		documentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corematch_cloud_documents_processed_total",
			Help: "Documents that completed the extraction pipeline.",
		}, []string{"org_id", "doc_type"}),
		invoicesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corematch_cloud_invoices_issued_total",
			Help: "Invoices moved out of draft.",
		}, []string{"org_id"}),
		screeningsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corematch_cloud_screenings_completed_total",
			Help: "CV screening jobs that reached a verdict.",
		}, []string{"org_id", "verdict"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corematch_cloud_engine_errors_total",
			Help: "Background engine failures by operation.",
		}, []string{"org_id", "operation"}),
		activeOrganizations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corematch_cloud_active_organizations",
			Help: "Organizations present on this install.",
		}),
	}

	registry.MustRegister(
		m.documentsProcessed,
		m.invoicesIssued,
		m.screeningsCompleted,
		m.engineErrors,
		m.activeOrganizations,
	)
	return m
}
