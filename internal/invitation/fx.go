package invitation

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/invitation/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
