package audit

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/audit/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
