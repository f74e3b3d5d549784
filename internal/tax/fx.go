package tax

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/tax/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewService),
)
