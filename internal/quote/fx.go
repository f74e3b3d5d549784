package quote

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/quote/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/quote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quote.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
