package document

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/document/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document/service"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
