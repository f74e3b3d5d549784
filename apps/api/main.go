package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/cloudmetrics"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/observability"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/server"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/fx"
)

// API-only process. Runs no migrations and no background scheduler;
// pair it with apps/scheduler and a migrated database.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		cloudmetrics.Module,

		pipeline.Module,
		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
