package events

import (
	"context"

	"github.com/solvetrace/solvetrace/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(providePublisher),
)

func providePublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*Publisher, error) {
	pub, err := NewNATSPublisher(cfg.Broker, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})

	return pub, nil
}
