package search

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.search",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Search.APIKey == "" {
		return &DisabledProvider{}
	}
	log.Named("providers.search").Info("lead sourcing search provider enabled",
		zap.String("base_url", cfg.Search.BaseURL))
	return NewHTTP(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.Timeout)
}
