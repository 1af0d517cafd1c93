package credit

import (
	"github.com/Tao119/eurekode-sub004/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(service.NewService),
)
