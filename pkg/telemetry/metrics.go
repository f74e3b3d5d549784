package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for the platform.
type Metrics struct {
	apiRequests      *prometheus.CounterVec
	apiDuration      *prometheus.HistogramVec
	streamsOpen      prometheus.Gauge
	streamEvents     *prometheus.CounterVec
	streamDropped    *prometheus.CounterVec
	storageOps       *prometheus.CounterVec
	storageDuration  *prometheus.HistogramVec
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	pdfRenders       *prometheus.CounterVec
	exportRows       *prometheus.CounterVec
	pipelineDocs     *prometheus.CounterVec
	pipelineErrors   *prometheus.CounterVec
	screeningJobs    *prometheus.CounterVec
	hscodeSuggests   *prometheus.CounterVec
	alertsEmitted    *prometheus.CounterVec
}

// NewMetrics registers and returns Prometheus metrics for telemetry.
func NewMetrics() *Metrics {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_api_requests_total",
		Help: "Counts API requests by method, status, and tenant.",
	}, []string{"method", "status", "tenant"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corematch_api_duration_seconds",
		Help:    "API request latency per method/tenant.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "tenant"})

	streamsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "corematch_event_streams_open",
		Help: "Currently open document event streams.",
	})

	streamEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_event_stream_events_total",
		Help: "Events delivered to document streams by type.",
	}, []string{"type"})

	streamDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_event_stream_dropped_total",
		Help: "Events dropped because a subscriber buffer was full.",
	}, []string{"type"})

	storageOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_storage_operations_total",
		Help: "Blob storage operations by driver, op, and status.",
	}, []string{"driver", "op", "status"})

	storageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corematch_storage_duration_seconds",
		Help:    "Blob storage operation latency by driver and op.",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "op"})

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_provider_calls_total",
		Help: "External provider calls by provider and status.",
	}, []string{"provider", "status"})

	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corematch_provider_duration_seconds",
		Help:    "External provider call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"provider"})

	pdfRenders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_pdf_renders_total",
		Help: "Invoice PDF renders by status.",
	}, []string{"status"})

	exportRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_export_rows_total",
		Help: "Rows written to spreadsheet exports by kind.",
	}, []string{"kind"})

	pipelineDocs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_pipeline_documents_total",
		Help: "Documents leaving the processing pipeline by outcome.",
	}, []string{"outcome"})

	pipelineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_pipeline_errors_total",
		Help: "Pipeline stage errors by stage.",
	}, []string{"stage"})

	screeningJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_screening_jobs_total",
		Help: "Screening jobs leaving the runner by outcome.",
	}, []string{"outcome"})

	hscodeSuggests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_hscode_suggestions_total",
		Help: "HS code suggestions answered, by source tier.",
	}, []string{"source"})

	alertsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "corematch_alerts_total",
		Help: "Operational alerts emitted by kind.",
	}, []string{"kind"})

	prometheus.MustRegister(
		apiRequests,
		apiDuration,
		streamsOpen,
		streamEvents,
		streamDropped,
		storageOps,
		storageDuration,
		providerCalls,
		providerDuration,
		pdfRenders,
		exportRows,
		pipelineDocs,
		pipelineErrors,
		screeningJobs,
		hscodeSuggests,
		alertsEmitted,
	)

	return &Metrics{
		apiRequests:      apiRequests,
		apiDuration:      apiDuration,
		streamsOpen:      streamsOpen,
		streamEvents:     streamEvents,
		streamDropped:    streamDropped,
		storageOps:       storageOps,
		storageDuration:  storageDuration,
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
		pdfRenders:       pdfRenders,
		exportRows:       exportRows,
		pipelineDocs:     pipelineDocs,
		pipelineErrors:   pipelineErrors,
		screeningJobs:    screeningJobs,
		hscodeSuggests:   hscodeSuggests,
		alertsEmitted:    alertsEmitted,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, status, tenant string, duration time.Duration) {
	if m == nil {
		return
	}
	tenantLabel := sanitizeTenant(tenant)
	methodLabel := sanitizeLabel(method)
	m.apiRequests.WithLabelValues(methodLabel, status, tenantLabel).Inc()
	m.apiDuration.WithLabelValues(methodLabel, tenantLabel).Observe(duration.Seconds())
}

// StreamOpened increments the open stream gauge.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streamsOpen.Inc()
}

// StreamClosed decrements the open stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streamsOpen.Dec()
}

// RecordStreamEvent counts an event delivered to a stream subscriber.
func (m *Metrics) RecordStreamEvent(eventType string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(sanitizeLabel(eventType)).Inc()
}

// RecordStreamDropped counts an event dropped on a saturated subscriber.
func (m *Metrics) RecordStreamDropped(eventType string) {
	if m == nil {
		return
	}
	m.streamDropped.WithLabelValues(sanitizeLabel(eventType)).Inc()
}

// RecordStorageOp records a blob storage operation outcome and latency.
func (m *Metrics) RecordStorageOp(driver, op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	driverLabel := sanitizeLabel(driver)
	opLabel := sanitizeLabel(op)
	m.storageOps.WithLabelValues(driverLabel, opLabel, status).Inc()
	m.storageDuration.WithLabelValues(driverLabel, opLabel).Observe(duration.Seconds())
}

// RecordProviderCall records an external provider roundtrip.
func (m *Metrics) RecordProviderCall(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	providerLabel := sanitizeLabel(provider)
	m.providerCalls.WithLabelValues(providerLabel, status).Inc()
	m.providerDuration.WithLabelValues(providerLabel).Observe(duration.Seconds())
}

// RecordPDFRender counts an invoice PDF render.
func (m *Metrics) RecordPDFRender(status string) {
	if m == nil {
		return
	}
	m.pdfRenders.WithLabelValues(sanitizeLabel(status)).Inc()
}

// RecordExportRows counts rows written to a spreadsheet export.
func (m *Metrics) RecordExportRows(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.exportRows.WithLabelValues(sanitizeLabel(kind)).Add(float64(count))
}

// RecordPipelineDocument counts a document leaving the pipeline with the
// given outcome (processed, failed).
func (m *Metrics) RecordPipelineDocument(outcome string) {
	if m == nil {
		return
	}
	m.pipelineDocs.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// RecordPipelineError counts a pipeline stage error.
func (m *Metrics) RecordPipelineError(stage string) {
	if m == nil {
		return
	}
	m.pipelineErrors.WithLabelValues(sanitizeLabel(stage)).Inc()
}

// RecordScreeningJob counts a screening job leaving the runner with the
// given outcome (completed, cache_hit, failed).
func (m *Metrics) RecordScreeningJob(outcome string) {
	if m == nil {
		return
	}
	m.screeningJobs.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// RecordHSCodeSuggestion counts an answered HS code suggestion by source
// tier (seed, learned, llm).
func (m *Metrics) RecordHSCodeSuggestion(source string) {
	if m == nil {
		return
	}
	m.hscodeSuggests.WithLabelValues(sanitizeLabel(source)).Inc()
}

// RecordAlert counts an emitted operational alert.
func (m *Metrics) RecordAlert(kind string) {
	if m == nil {
		return
	}
	m.alertsEmitted.WithLabelValues(sanitizeLabel(kind)).Inc()
}

func sanitizeTenant(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
