package generation

import (
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	"github.com/Tao119/eurekode-sub004/internal/generation/recorder"
	"go.uber.org/fx"
)

var Module = fx.Module("generation",
	fx.Provide(
		recorder.NewRecorder,
		func(r *recorder.Recorder) gendomain.Service { return r },
	),
)
