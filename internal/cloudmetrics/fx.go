package cloudmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const orgCountInterval = 30 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(fx.Private, func() *prometheus.Registry {
		return prometheus.NewRegistry()
	}),
	fx.Invoke(Register),
	fx.Invoke(watchOrganizationCount),
)

// watchOrganizationCount keeps the active-organizations gauge fresh.
// It is a no-op when Register left the noop recorder in place.
func watchOrganizationCount(lc fx.Lifecycle, cfg config.Config, db *gorm.DB) {
	if !shouldEnable(cfg) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(orgCountInterval)
				defer ticker.Stop()
				refreshOrganizationCount(ctx, db)
				for {
					select {
					case <-ticker.C:
						refreshOrganizationCount(ctx, db)
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func refreshOrganizationCount(ctx context.Context, db *gorm.DB) {
	if db == nil {
		return
	}
	var count int64
	if err := db.WithContext(ctx).Table("organizations").Count(&count).Error; err != nil {
		return
	}
	UpdateActiveOrganizations(count)
}
