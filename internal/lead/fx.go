package lead

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/lead/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/lead/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lead.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
