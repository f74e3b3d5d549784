package apikey

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/apikey/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
