package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/solvetrace/solvetrace/internal/aggregation"
	"github.com/solvetrace/solvetrace/internal/ai"
	"github.com/solvetrace/solvetrace/internal/analysis"
	"github.com/solvetrace/solvetrace/internal/cache"
	"github.com/solvetrace/solvetrace/internal/clock"
	"github.com/solvetrace/solvetrace/internal/cloudmetrics"
	"github.com/solvetrace/solvetrace/internal/config"
	"github.com/solvetrace/solvetrace/internal/events"
	"github.com/solvetrace/solvetrace/internal/migration"
	"github.com/solvetrace/solvetrace/internal/observability"
	"github.com/solvetrace/solvetrace/internal/ratelimit"
	"github.com/solvetrace/solvetrace/internal/server"
	"github.com/solvetrace/solvetrace/internal/session"
	"github.com/solvetrace/solvetrace/pkg/db"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(clock.System),
		db.Module,
		migration.Module,

		// ingestion and analysis domains
		cache.Module,
		events.Module,
		session.Module,
		aggregation.Module,
		ai.Module,
		analysis.Module,
		ratelimit.Module,
		cloudmetrics.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
