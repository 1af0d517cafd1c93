package scheduler

import (
	"context"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RunSweeper),
)

func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	if cfg.SweepInterval > 0 {
		out.RunInterval = time.Duration(cfg.SweepInterval) * time.Second
	}
	return out
}

// RunSweeper starts the background loop; TRIAL_SWEEP_INTERVAL=0 disables it.
func RunSweeper(lc fx.Lifecycle, cfg config.Config, sweeper *Sweeper) {
	if cfg.SweepInterval <= 0 {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
