package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/zyalhor1961/corematch-web-sub006/internal/alert"
	"github.com/zyalhor1961/corematch-web-sub006/internal/audit"
	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	"github.com/zyalhor1961/corematch-web-sub006/internal/cloudmetrics"
	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/internal/document"
	"github.com/zyalhor1961/corematch-web-sub006/internal/extraction"
	"github.com/zyalhor1961/corematch-web-sub006/internal/hscode"
	"github.com/zyalhor1961/corematch-web-sub006/internal/liveevents"
	"github.com/zyalhor1961/corematch-web-sub006/internal/observability"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers"
	"github.com/zyalhor1961/corematch-web-sub006/internal/ratelimit"
	"github.com/zyalhor1961/corematch-web-sub006/internal/scheduler"
	"github.com/zyalhor1961/corematch-web-sub006/internal/screening"
	"github.com/zyalhor1961/corematch-web-sub006/internal/storage"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
)

// Worker process: the document pipeline, screening runner and HS code
// rollup without the HTTP surface.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		cloudmetrics.Module,

		scheduler.Module,
		pipeline.Module,
		screening.Module,
		hscode.Module,
		ratelimit.Module,

		document.Module,
		extraction.Module,
		storage.Module,
		liveevents.Module,
		alert.Module,
		audit.Module,
		providers.Module,
		fx.Provide(telemetry.NewMetrics),
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
