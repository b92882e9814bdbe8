package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	analysisdomain "github.com/solvetrace/solvetrace/internal/analysis/domain"
	"github.com/solvetrace/solvetrace/internal/config"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations are written for postgres. The sqlite and
		// mysql paths exist for local development, where the schema is derived
		// from the models instead.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&sessiondomain.ActivityEvent{},
				&analysisdomain.AnalysisResult{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
