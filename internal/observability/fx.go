package observability

import (
	obsmetrics "github.com/Tao119/eurekode-sub004/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(obsmetrics.New),
)
