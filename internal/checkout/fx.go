package checkout

import (
	"github.com/Tao119/eurekode-sub004/internal/checkout/provider"
	"github.com/Tao119/eurekode-sub004/internal/checkout/service"
	"github.com/Tao119/eurekode-sub004/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(
		func(cfg config.Config) provider.Provider {
			return provider.ByName(cfg.CheckoutProvider)
		},
		service.NewService,
	),
)
