package invoice

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
