package organization

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/organization/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
