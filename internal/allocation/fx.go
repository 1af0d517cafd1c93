package allocation

import (
	"github.com/Tao119/eurekode-sub004/internal/allocation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("allocation.service",
	fx.Provide(service.NewService),
)
