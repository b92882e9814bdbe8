package cloudmetrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solvetrace/solvetrace/internal/config"
	"github.com/solvetrace/solvetrace/internal/ratelimit"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

const (
	pushInterval = 30 * time.Minute
	pushLockKey  = "cloudmetrics:push:lock"
)

type workerParam struct {
	fx.In

	LC     fx.Lifecycle
	C      *CloudMetrics
	Logger *zap.Logger
	DB     *gorm.DB
	Locker *ratelimit.Locker `optional:"true"`
}

var Module = fx.Module("cloud.metrics",
	fx.Provide(func() *prometheus.Registry {
		return prometheus.NewRegistry()
	}),
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, registry *prometheus.Registry, pusher Pusher, logger *zap.Logger) *CloudMetrics {
		if !cfg.Cloud.Metrics.Enabled {
			return nil
		}
		return New(registry, pusher, cfg.Cloud.AccountID, cfg.AppVersion, logger)
	}),
	fx.Invoke(runPushWorker),
)

func runPushWorker(p workerParam) {
	if p.C == nil {
		return
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting cloud metrics background worker")
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()

				collectAndPush(ctx, p, logger)
				for {
					select {
					case <-ticker.C:
						collectAndPush(ctx, p, logger)
					case <-ctx.Done():
						logger.Info("stopping cloud metrics background worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

// collectAndPush refreshes gauges and pushes the registry. When a locker is
// available the push is guarded so only one replica uploads per interval.
func collectAndPush(ctx context.Context, p workerParam, logger *zap.Logger) {
	updateSystemMetrics(p.C)
	updateStoredEventCount(ctx, p.C, p.DB)

	if p.Locker != nil {
		// The lock is held for half the interval via TTL rather than released,
		// so at most one replica uploads per cycle.
		_, acquired, err := p.Locker.TryLock(ctx, pushLockKey, pushInterval/2)
		if err != nil {
			logger.Warn("cloud metrics push lock unavailable, pushing anyway", zap.Error(err))
		} else if !acquired {
			return
		}
	}

	if err := p.C.Push(ctx); err != nil {
		logger.Error("cloud metrics push failed", zap.Error(err))
	}
}

func updateSystemMetrics(c *CloudMetrics) {
	if c == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.SetMemoryUsage(m.Sys)
}

func updateStoredEventCount(ctx context.Context, c *CloudMetrics, db *gorm.DB) {
	if c == nil || db == nil {
		return
	}
	var count int64
	if err := db.WithContext(ctx).Model(&sessiondomain.ActivityEvent{}).Count(&count).Error; err != nil {
		return
	}
	c.SetEventsStored(count)
}
