package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	PipelineStageValidate      = "validate"
	PipelineStageAggregate     = "aggregate"
	PipelineStageAIAttempt     = "ai_attempt"
	PipelineStageHeuristic     = "heuristic"
	PipelineStageExtractFields = "extract_fields"
	PipelineStagePersist       = "persist"
)

const (
	PipelineErrorTypeDeadlineExceeded = "deadline_exceeded"
	PipelineErrorTypeValidation       = "validation"
	PipelineErrorTypeDB               = "db"
	PipelineErrorTypeUpstream         = "upstream"
	PipelineErrorTypeUnknown          = "unknown"
)

// PipelineMetrics captures analysis pipeline health signals.
type PipelineMetrics struct {
	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	engineUsed    *prometheus.CounterVec
	aiAttempts    *prometheus.CounterVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	if pipelineMetrics != nil {
		prometheus.DefaultRegisterer.Unregister(pipelineMetrics.runs)
		prometheus.DefaultRegisterer.Unregister(pipelineMetrics.stageDuration)
		prometheus.DefaultRegisterer.Unregister(pipelineMetrics.stageErrors)
		prometheus.DefaultRegisterer.Unregister(pipelineMetrics.engineUsed)
		prometheus.DefaultRegisterer.Unregister(pipelineMetrics.aiAttempts)
	}
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "solvetrace"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_analysis_runs_total",
		Help:        "Analysis pipeline runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "solvetrace_analysis_stage_duration_seconds",
		Help:        "Analysis pipeline stage latency.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"stage"})
	stageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_analysis_stage_errors_total",
		Help:        "Analysis pipeline stage errors by low-cardinality type.",
		ConstLabels: constLabels,
	}, []string{"stage", "error_type"})
	engineUsed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_analysis_engine_total",
		Help:        "Analyses served by engine.",
		ConstLabels: constLabels,
	}, []string{"engine"})
	aiAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_ai_attempts_total",
		Help:        "AI completion attempts by result.",
		ConstLabels: constLabels,
	}, []string{"result"})

	registerer.MustRegister(
		runs,
		stageDuration,
		stageErrors,
		engineUsed,
		aiAttempts,
	)

	return &PipelineMetrics{
		runs:          runs,
		stageDuration: stageDuration,
		stageErrors:   stageErrors,
		engineUsed:    engineUsed,
		aiAttempts:    aiAttempts,
	}
}

// IncRun increments the pipeline run counter for an outcome.
func (m *PipelineMetrics) IncRun(outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveStageDuration records pipeline stage latency in seconds.
func (m *PipelineMetrics) ObserveStageDuration(stage string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// IncStageError increments the stage error counter with classification.
func (m *PipelineMetrics) IncStageError(stage string, err error) {
	if m == nil || err == nil || m.stageErrors == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, ClassifyPipelineErrorType(err)).Inc()
}

// IncEngineUsed increments the per-engine analysis counter.
func (m *PipelineMetrics) IncEngineUsed(engine string) {
	if m == nil || m.engineUsed == nil {
		return
	}
	m.engineUsed.WithLabelValues(engine).Inc()
}

// IncAIAttempt increments the AI attempt counter for a result.
func (m *PipelineMetrics) IncAIAttempt(result string) {
	if m == nil || m.aiAttempts == nil {
		return
	}
	m.aiAttempts.WithLabelValues(result).Inc()
}

// ClassifyPipelineErrorType maps pipeline errors to low-cardinality types.
func ClassifyPipelineErrorType(err error) string {
	if err == nil {
		return PipelineErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return PipelineErrorTypeDeadlineExceeded
	}
	if isDBError(err) {
		return PipelineErrorTypeDB
	}
	return PipelineErrorTypeUnknown
}

// IsPipelineErrorRetryable reports whether the pipeline error should be retried.
func IsPipelineErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isDBLockTimeout(err) || isSerializationFailure(err)
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
