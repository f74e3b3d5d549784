package bi

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/bi/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bi.service",
	fx.Provide(service.NewService),
)
