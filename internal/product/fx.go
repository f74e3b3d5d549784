package product

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/product/repository"
	"github.com/zyalhor1961/corematch-web-sub006/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
