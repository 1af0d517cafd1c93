package subscription

import (
	"github.com/Tao119/eurekode-sub004/internal/subscription/repository"
	"github.com/Tao119/eurekode-sub004/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
