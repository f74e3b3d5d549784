package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zyalhor1961/corematch-web-sub006/internal/authorization"
	documentdomain "github.com/zyalhor1961/corematch-web-sub006/internal/document/domain"
	"gorm.io/gorm"
)

const (
	schedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	schedulerErrorTypeAuthorization    = "authorization"
	schedulerErrorTypeBusinessRule     = "business_rule"
	schedulerErrorTypeDB               = "db"
)

const (
	SchedulerErrorTypeDeadlineExceeded = schedulerErrorTypeDeadlineExceeded
	SchedulerErrorTypeAuthorization    = schedulerErrorTypeAuthorization
	SchedulerErrorTypeBusinessRule     = schedulerErrorTypeBusinessRule
	SchedulerErrorTypeDB               = schedulerErrorTypeDB
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonForbidden            = "forbidden"
	SchedulerJobReasonProvider             = "provider"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonSkipLockedEmpty = "skip_locked_empty"
)

const (
	PipelineStageClaim         = "claim"
	PipelineStageFetch         = "fetch"
	PipelineStageAnalyze       = "analyze"
	PipelineStagePersistFields = "persist_fields"
	PipelineStageNormalize     = "normalize"
	PipelineStageFinalize      = "finalize"
)

const (
	LockResourceDocumentsForWork     = "documents_for_work"
	LockResourceScreeningJobsForWork = "screening_jobs_for_work"
	LockResourceDocumentByID         = "document_by_id"
)

// SchedulerMetrics captures background pipeline health signals.
type SchedulerMetrics struct {
	jobRuns             *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	jobTimeouts         *prometheus.CounterVec
	jobErrors           *prometheus.CounterVec
	batchProcessed      *prometheus.CounterVec
	batchDeferred       *prometheus.CounterVec
	runLoopLag          prometheus.Observer
	documentTransitions *prometheus.CounterVec
	pipelineErrors      *prometheus.CounterVec
	dbLockWait          *prometheus.HistogramVec
	transitionCounts    map[string]map[string]prometheus.Counter
	lockWaitObserver    map[string]prometheus.Observer
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "corematch"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "corematch_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency to keep document processing fresh.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_scheduler_job_timeouts_total",
		Help:        "Scheduler job timeouts that delay document processing.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_scheduler_batch_processed_total",
		Help:        "Scheduler batch items processed to gauge pipeline throughput.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	batchDeferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_scheduler_batch_deferred_total",
		Help:        "Scheduler batch deferrals by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "corematch_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	documentTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_document_transition_total",
		Help:        "Document lifecycle transitions to validate pipeline health.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	pipelineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "corematch_pipeline_error_total",
		Help:        "Pipeline errors by stage for faster incident isolation.",
		ConstLabels: constLabels,
	}, []string{"stage", "error_type"})
	dbLockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "corematch_scheduler_db_lock_wait_seconds",
		Help:        "Scheduler DB lock wait time for SELECT FOR UPDATE contention.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"resource"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		batchDeferred,
		runLoopLag,
		documentTransitions,
		pipelineErrors,
		dbLockWait,
	)

	transitionCounts := map[string]map[string]prometheus.Counter{
		string(documentdomain.StatusUploaded): {
			string(documentdomain.StatusProcessing): documentTransitions.WithLabelValues(
				string(documentdomain.StatusUploaded),
				string(documentdomain.StatusProcessing),
			),
		},
		string(documentdomain.StatusProcessing): {
			string(documentdomain.StatusProcessed): documentTransitions.WithLabelValues(
				string(documentdomain.StatusProcessing),
				string(documentdomain.StatusProcessed),
			),
			string(documentdomain.StatusFailed): documentTransitions.WithLabelValues(
				string(documentdomain.StatusProcessing),
				string(documentdomain.StatusFailed),
			),
		},
	}

	lockWaitObserver := map[string]prometheus.Observer{
		LockResourceDocumentsForWork:     dbLockWait.WithLabelValues(LockResourceDocumentsForWork),
		LockResourceScreeningJobsForWork: dbLockWait.WithLabelValues(LockResourceScreeningJobsForWork),
		LockResourceDocumentByID:         dbLockWait.WithLabelValues(LockResourceDocumentByID),
	}

	return &SchedulerMetrics{
		jobRuns:             jobRuns,
		jobDuration:         jobDuration,
		jobTimeouts:         jobTimeouts,
		jobErrors:           jobErrors,
		batchProcessed:      batchProcessed,
		batchDeferred:       batchDeferred,
		runLoopLag:          runLoopLag,
		documentTransitions: documentTransitions,
		pipelineErrors:      pipelineErrors,
		dbLockWait:          dbLockWait,
		transitionCounts:    transitionCounts,
		lockWaitObserver:    lockWaitObserver,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the scheduler job.
func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter for a resource by count.
func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 || m.batchProcessed == nil {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// IncBatchDeferred increments the batch deferred counter for a job and reason.
func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m == nil || m.batchDeferred == nil {
		return
	}
	m.batchDeferred.WithLabelValues(job, reason).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SchedulerMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	lag := duration
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// IncDocumentTransition increments document lifecycle transition counters.
func (m *SchedulerMetrics) IncDocumentTransition(from, to string) {
	if m == nil {
		return
	}
	if toCounters, ok := m.transitionCounts[from]; ok {
		if counter, ok := toCounters[to]; ok {
			counter.Inc()
			return
		}
	}
	m.documentTransitions.WithLabelValues(from, to).Inc()
}

// IncPipelineError increments pipeline errors by stage and type.
func (m *SchedulerMetrics) IncPipelineError(stage string, err error) {
	if m == nil || err == nil || m.pipelineErrors == nil {
		return
	}
	m.pipelineErrors.WithLabelValues(stage, classifySchedulerError(err)).Inc()
}

// ObserveDBLockWait records lock wait time for SELECT FOR UPDATE work.
func (m *SchedulerMetrics) ObserveDBLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.lockWaitObserver[resource]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

func classifySchedulerError(err error) string {
	if err == nil {
		return schedulerErrorTypeBusinessRule
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schedulerErrorTypeDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return schedulerErrorTypeAuthorization
	}
	if isDBError(err) {
		return schedulerErrorTypeDB
	}
	return schedulerErrorTypeBusinessRule
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	if err == nil {
		return SchedulerErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerErrorTypeDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return SchedulerErrorTypeAuthorization
	}
	if isDBError(err) {
		return SchedulerErrorTypeDB
	}
	return SchedulerErrorTypeBusinessRule
}

// IsSchedulerErrorRetryable reports whether the scheduler error should be retried.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerJobReasonDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return SchedulerJobReasonForbidden
	}
	if isDBLockTimeout(err) {
		return SchedulerJobReasonDBLockTimeout
	}
	if isSerializationFailure(err) {
		return SchedulerJobReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return SchedulerJobReasonUniqueViolation
	}
	return SchedulerJobReasonUnknown
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidOrganization) ||
		errors.Is(err, authorization.ErrInvalidObject) ||
		errors.Is(err, authorization.ErrInvalidAction)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrRegistered) ||
		errors.Is(err, gorm.ErrInvalidValue) ||
		errors.Is(err, gorm.ErrNotImplemented) ||
		errors.Is(err, gorm.ErrDryRunModeUnsupported) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
