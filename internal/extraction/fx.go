package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/domain"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/provider/azure"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/provider/fake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction/repository"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("extraction",
	fx.Provide(repository.Provide),
	fx.Provide(NewProvider),
)

type ProviderParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *telemetry.Metrics
}

func NewProvider(p ProviderParams) (domain.Provider, error) {
	log := p.Log.Named("extraction")

	var inner domain.Provider
	switch p.Config.Analysis.Provider {
	case "azure":
		if p.Config.Analysis.AzureEndpoint == "" || p.Config.Analysis.AzureAPIKey == "" {
			return nil, errors.New("AZURE_VISION_ENDPOINT and AZURE_VISION_KEY are required for the azure analysis provider")
		}
		inner = azure.New(p.Config.Analysis.AzureEndpoint, p.Config.Analysis.AzureAPIKey, p.Config.Analysis.Preprocess)
	default:
		inner = fake.New()
	}

	log.Info("analysis provider ready", zap.String("provider", inner.Name()))
	return &instrumentedProvider{next: inner, metrics: p.Metrics}, nil
}

type instrumentedProvider struct {
	next    domain.Provider
	metrics *telemetry.Metrics
}

func (i *instrumentedProvider) Name() string { return i.next.Name() }

func (i *instrumentedProvider) Analyze(ctx context.Context, content []byte, contentType string) ([]domain.RawField, error) {
	start := time.Now()
	fields, err := i.next.Analyze(ctx, content, contentType)
	if i.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		i.metrics.RecordProviderCall(i.next.Name(), status, time.Since(start))
	}
	return fields, err
}
