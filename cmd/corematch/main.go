package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/cloudmetrics"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/migration"
	"github.com/zyalhor1961/corematch-web-sub006/internal/observability"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/scheduler"
	"github.com/zyalhor1961/corematch-web-sub006/internal/server"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"go.uber.org/fx"
)

// The default deployment: HTTP API, admin surface, and the background
// document pipeline in a single process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		cloudmetrics.Module,

		pipeline.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
