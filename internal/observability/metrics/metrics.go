package metrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	documentsProcessed metric.Int64Counter
	fieldsExtracted    metric.Int64Counter
	journalEntries     metric.Int64Counter
	screeningJobs      metric.Int64Counter
	hscodeSuggestions  metric.Int64Counter
	leadsSourced       metric.Int64Counter
	rateLimitAllowed   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "corematch"
	}
	meter := provider.Meter(name)

	documentsProcessed, err := meter.Int64Counter("corematch_documents_processed_total")
	if err != nil {
		return nil, err
	}
	fieldsExtracted, err := meter.Int64Counter("corematch_extracted_fields_total")
	if err != nil {
		return nil, err
	}
	journalEntries, err := meter.Int64Counter("corematch_journal_entries_total")
	if err != nil {
		return nil, err
	}
	screeningJobs, err := meter.Int64Counter("corematch_screening_jobs_total")
	if err != nil {
		return nil, err
	}
	hscodeSuggestions, err := meter.Int64Counter("corematch_hscode_suggestions_total")
	if err != nil {
		return nil, err
	}
	leadsSourced, err := meter.Int64Counter("corematch_leads_sourced_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("corematch_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("corematch_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		documentsProcessed: documentsProcessed,
		fieldsExtracted:    fieldsExtracted,
		journalEntries:     journalEntries,
		screeningJobs:      screeningJobs,
		hscodeSuggestions:  hscodeSuggestions,
		leadsSourced:       leadsSourced,
		rateLimitAllowed:   rateLimitAllowed,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordDocumentProcessed increments pipeline outcome counts.
func (m *Metrics) RecordDocumentProcessed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.documentsProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFieldsExtracted adds the number of fields persisted for one analysis run.
func (m *Metrics) RecordFieldsExtracted(ctx context.Context, provider string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))
	m.fieldsExtracted.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordJournalEntry increments journal entry counts.
func (m *Metrics) RecordJournalEntry(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.journalEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordScreeningJob increments screening outcome counts.
func (m *Metrics) RecordScreeningJob(ctx context.Context, outcome string, cacheHit bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("cache", strconv.FormatBool(cacheHit)),
	)
	m.screeningJobs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHSCodeSuggestion increments suggestion counts per resolution tier.
func (m *Metrics) RecordHSCodeSuggestion(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("tier", strings.TrimSpace(tier)))
	m.hscodeSuggestions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLeadsSourced adds the number of leads created by one sourcing call.
func (m *Metrics) RecordLeadsSourced(ctx context.Context, source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.leadsSourced.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"endpoint":    {},
	"status_code": {},
	"provider":    {},
	"outcome":     {},
	"source_type": {},
	"source":      {},
	"tier":        {},
	"cache":       {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
