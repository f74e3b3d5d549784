package scheduler

import (
	"time"

	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
)

// Config controls job cadence and per-run limits. Zero values are
// replaced with defaults so a partially configured install still runs.
type Config struct {
	PipelineInterval  time.Duration
	ScreeningInterval time.Duration
	RollupInterval    time.Duration

	// JobTimeout bounds one run of one job; SoftTimeout only logs a
	// warning so slow-but-progressing runs are visible before they are
	// killed.
	JobTimeout  time.Duration
	SoftTimeout time.Duration

	// LockTTL is the Redis single-flight lease per job. It must outlive
	// JobTimeout or a replica could start a second run mid-flight.
	LockTTL time.Duration
}

const (
	defaultPipelineInterval  = 15 * time.Second
	defaultScreeningInterval = 30 * time.Second
	defaultRollupInterval    = 24 * time.Hour
	defaultJobTimeout        = 2 * time.Minute
	defaultSoftTimeout       = 30 * time.Second
)

func ProvideConfig(cfg config.Config) Config {
	out := Config{
		PipelineInterval:  cfg.Pipeline.RunInterval,
		ScreeningInterval: cfg.Pipeline.ScreeningInterval,
		RollupInterval:    defaultRollupInterval,
		JobTimeout:        defaultJobTimeout,
		SoftTimeout:       defaultSoftTimeout,
	}
	return out.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.PipelineInterval <= 0 {
		c.PipelineInterval = defaultPipelineInterval
	}
	if c.ScreeningInterval <= 0 {
		c.ScreeningInterval = defaultScreeningInterval
	}
	if c.RollupInterval <= 0 {
		c.RollupInterval = defaultRollupInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.SoftTimeout <= 0 || c.SoftTimeout >= c.JobTimeout {
		c.SoftTimeout = c.JobTimeout / 4
	}
	if c.LockTTL <= c.JobTimeout {
		c.LockTTL = c.JobTimeout + time.Minute
	}
	return c
}
