package slack

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Alert.WebhookURL == "" {
		return &NoOpProvider{}
	}
	log.Named("providers.slack").Info("slack webhook notifications enabled")
	return NewWebhook(cfg.Alert.WebhookURL)
}
