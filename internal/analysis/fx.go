package analysis

import (
	"go.uber.org/fx"

	"github.com/solvetrace/solvetrace/internal/analysis/service"
)

var Module = fx.Module("analysis.service",
	fx.Provide(service.NewService),
)
