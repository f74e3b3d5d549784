package screening

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/runner"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening/service"
	"go.uber.org/fx"
)

var Module = fx.Module("screening.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(runner.New),
)
