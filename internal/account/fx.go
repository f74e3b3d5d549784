package account

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/account/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
