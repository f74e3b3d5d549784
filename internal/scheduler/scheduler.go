package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/zyalhor1961/corematch-web-sub006/internal/clock"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
	obsmetrics "github.com/zyalhor1961/corematch-web-sub006/internal/observability/metrics"
	"github.com/zyalhor1961/corematch-web-sub006/internal/pipeline"
	"github.com/zyalhor1961/corematch-web-sub006/internal/ratelimit"
	screeningrunner "github.com/zyalhor1961/corematch-web-sub006/internal/screening/runner"
)

const (
	JobDocumentPipeline = "document_pipeline"
	JobScreeningRunner  = "screening_runner"
	JobHSCodeRollup     = "hscode_usage_rollup"
)

// job is one recurring unit of background work. run returns how many
// items it handled so throughput metrics stay meaningful.
type job struct {
	name     string
	resource string
	interval time.Duration
	run      func(ctx context.Context) (int, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Config    Config
	Pipeline  *pipeline.Processor
	Screening *screeningrunner.Runner
	HSCodes   hscodedomain.Service
	Locker    *ratelimit.Locker `optional:"true"`
}

// Scheduler drives the background jobs: the document pipeline, the
// screening runner and the nightly HS code usage rollup. Each job ticks
// independently so a slow rollup cannot starve document processing.
type Scheduler struct {
	log    *zap.Logger
	clock  clock.Clock
	cfg    Config
	locker *ratelimit.Locker

	jobs []job
}

func New(p Params) *Scheduler {
	cfg := p.Config.withDefaults()
	s := &Scheduler{
		log:    p.Log.Named("scheduler"),
		clock:  p.Clock,
		cfg:    cfg,
		locker: p.Locker,
	}
	s.jobs = []job{
		{
			name:     JobDocumentPipeline,
			resource: obsmetrics.LockResourceDocumentsForWork,
			interval: cfg.PipelineInterval,
			run:      p.Pipeline.Run,
		},
		{
			name:     JobScreeningRunner,
			resource: obsmetrics.LockResourceScreeningJobsForWork,
			interval: cfg.ScreeningInterval,
			run:      p.Screening.Run,
		},
		{
			name:     JobHSCodeRollup,
			resource: "hscode_usage",
			interval: cfg.RollupInterval,
			run: func(ctx context.Context) (int, error) {
				compacted, err := p.HSCodes.RollupUsage(ctx)
				return int(compacted), err
			},
		},
	}
	return s
}

// RunForever blocks until ctx is cancelled, ticking every job on its
// own interval. Each job also runs once at startup so a restart does
// not wait a full interval before draining backlog.
func (s *Scheduler) RunForever(ctx context.Context) {
	s.log.Info("scheduler starting",
		zap.Duration("pipeline_interval", s.cfg.PipelineInterval),
		zap.Duration("screening_interval", s.cfg.ScreeningInterval),
		zap.Duration("rollup_interval", s.cfg.RollupInterval),
	)

	done := make(chan struct{}, len(s.jobs))
	for _, j := range s.jobs {
		j := j
		go func() {
			defer func() { done <- struct{}{} }()
			s.runLoop(ctx, j)
		}()
	}
	for range s.jobs {
		<-done
	}
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.RunJob(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			obsmetrics.Scheduler().ObserveRunLoopLag(s.clock.Now().Sub(tick))
			s.RunJob(ctx, j)
		}
	}
}

// RunJob executes one run of one job with cross-replica locking, panic
// recovery, a hard deadline, and metrics. Errors are logged, never
// propagated: the next tick retries.
func (s *Scheduler) RunJob(ctx context.Context, j job) {
	if ctx.Err() != nil {
		return
	}
	release, ok := s.acquire(ctx, j)
	if !ok {
		return
	}
	defer release()

	m := obsmetrics.Scheduler()
	m.IncJobRun(j.name)
	start := s.clock.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	soft := time.AfterFunc(s.cfg.SoftTimeout, func() {
		s.log.Warn("job running longer than expected",
			zap.String("job", j.name),
			zap.Duration("soft_timeout", s.cfg.SoftTimeout),
		)
	})
	defer soft.Stop()

	processed, err := s.safeRun(runCtx, j)

	elapsed := s.clock.Now().Sub(start)
	m.ObserveJobDuration(j.name, elapsed)
	m.AddBatchProcessed(j.name, j.resource, processed)

	switch {
	case err == nil:
		if processed > 0 {
			s.log.Info("job completed",
				zap.String("job", j.name),
				zap.Int("processed", processed),
				zap.Duration("elapsed", elapsed),
			)
		}
	case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		m.IncJobTimeout(j.name)
		m.IncJobError(j.name, err)
		s.log.Error("job timed out",
			zap.String("job", j.name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Int("processed", processed),
		)
	case ctx.Err() != nil:
		// Shutdown in progress, not a job failure.
	default:
		m.IncJobError(j.name, err)
		s.log.Error("job failed",
			zap.String("job", j.name),
			zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
			zap.Int("processed", processed),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) safeRun(ctx context.Context, j job) (processed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
			s.log.Error("job panicked",
				zap.String("job", j.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	return j.run(ctx)
}

// acquire takes the per-job Redis lease when a Locker is configured so
// only one replica runs a given job at a time. Without Redis the DB
// level SKIP LOCKED claims still keep replicas from double-processing,
// so the scheduler runs unlocked rather than not at all.
func (s *Scheduler) acquire(ctx context.Context, j job) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}
	key := "scheduler:lock:" + j.name
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("job lock unavailable, running unlocked",
			zap.String("job", j.name),
			zap.Error(err),
		)
		return func() {}, true
	}
	if !ok {
		s.log.Debug("job held by another replica", zap.String("job", j.name))
		return nil, false
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("job lock release failed",
				zap.String("job", j.name),
				zap.Error(err),
			)
		}
	}, true
}
