package plan

import (
	"github.com/Tao119/eurekode-sub004/internal/cache"
	"github.com/Tao119/eurekode-sub004/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(cache.NewPlanResolverCache),
	fx.Provide(service.NewService),
)
