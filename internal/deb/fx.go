package deb

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/deb/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deb.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
