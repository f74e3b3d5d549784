package alert

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/alert/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/alert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alert.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
