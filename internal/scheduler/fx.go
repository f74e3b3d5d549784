package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(start),
)

func start(lc fx.Lifecycle, sched *Scheduler, cfg config.Config, log *zap.Logger) {
	if !cfg.Pipeline.Enabled {
		log.Info("background pipeline disabled")
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
