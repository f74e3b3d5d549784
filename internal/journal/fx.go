package journal

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/journal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("journal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
