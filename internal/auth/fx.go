package auth

import (
	authconfig "github.com/zyalhor1961/corematch-web-sub006/internal/auth/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(authconfig.ParseAuthProvidersFromEnv),
	fx.Provide(authconfig.BuildAuthProviderRegistry),
	fx.Invoke(ensureAuthProviderRegistry),
)

func ensureAuthProviderRegistry(_ authconfig.AuthProviderRegistry) {}
