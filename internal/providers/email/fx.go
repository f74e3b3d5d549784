package email

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	if cfg.SMTP.Host == "" {
		return &NoOpProvider{}, nil
	}
	provider, err := NewSMTP(Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return nil, err
	}
	log.Named("providers.email").Info("smtp delivery enabled",
		zap.String("host", cfg.SMTP.Host))
	return provider, nil
}
