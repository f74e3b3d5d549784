package llm

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.llm",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.LLM.APIKey == "" {
		return &DisabledProvider{}
	}
	log.Named("providers.llm").Info("llm provider enabled",
		zap.String("base_url", cfg.LLM.BaseURL),
		zap.String("model", cfg.LLM.Model))
	return NewHTTP(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
}
