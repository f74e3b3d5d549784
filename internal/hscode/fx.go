package hscode

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("hscode.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
