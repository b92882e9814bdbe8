// Package cloudmetrics ships accounting metrics from self-hosted instances
// to the hosted control plane.
package cloudmetrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CloudMetrics owns a private registry of accounting series. It never exposes
// payload data: only event and analysis counts with low-cardinality labels.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher
	logger   *zap.Logger

	eventsIngested    *prometheus.CounterVec
	analysesCompleted *prometheus.CounterVec
	engineErrors      *prometheus.CounterVec
	eventsStored      prometheus.Gauge
	memoryBytes       prometheus.Gauge
}

// New builds the cloud metrics recorder on a dedicated registry.
func New(registry *prometheus.Registry, pusher Pusher, accountID, version string, logger *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	constLabels := prometheus.Labels{
		"account_id": normalizeLabel(accountID),
		"version":    normalizeLabel(version),
	}

	eventsIngested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_cloud_events_ingested_total",
		Help:        "Activity events accepted by this instance.",
		ConstLabels: constLabels,
	}, []string{"event_type", "platform"})
	analysesCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_cloud_analyses_total",
		Help:        "Completed analyses by engine.",
		ConstLabels: constLabels,
	}, []string{"engine"})
	engineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "solvetrace_cloud_engine_errors_total",
		Help:        "Engine errors by operation.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	eventsStored := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "solvetrace_cloud_events_stored",
		Help:        "Total activity events in the store.",
		ConstLabels: constLabels,
	})
	memoryBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "solvetrace_cloud_memory_bytes",
		Help:        "Process memory obtained from the OS.",
		ConstLabels: constLabels,
	})

	registry.MustRegister(eventsIngested, analysesCompleted, engineErrors, eventsStored, memoryBytes)

	return &CloudMetrics{
		registry:          registry,
		pusher:            pusher,
		logger:            logger,
		eventsIngested:    eventsIngested,
		analysesCompleted: analysesCompleted,
		engineErrors:      engineErrors,
		eventsStored:      eventsStored,
		memoryBytes:       memoryBytes,
	}
}

// IncEventIngested counts an accepted activity event.
func (c *CloudMetrics) IncEventIngested(eventType, platform string) {
	if c == nil {
		return
	}
	c.eventsIngested.WithLabelValues(normalizeLabel(eventType), normalizeLabel(platform)).Inc()
}

// IncAnalysisCompleted counts a completed analysis by engine.
func (c *CloudMetrics) IncAnalysisCompleted(engine string) {
	if c == nil {
		return
	}
	c.analysesCompleted.WithLabelValues(normalizeLabel(engine)).Inc()
}

// IncEngineError counts an engine failure by operation.
func (c *CloudMetrics) IncEngineError(operation string) {
	if c == nil {
		return
	}
	c.engineErrors.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SetEventsStored records the total event rows in the store.
func (c *CloudMetrics) SetEventsStored(count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.eventsStored.Set(float64(count))
}

// SetMemoryUsage records process memory in bytes.
func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil {
		return
	}
	c.memoryBytes.Set(float64(bytes))
}

// Push ships the current registry to the configured pusher.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.pusher == nil {
		return errors.New("cloud metrics pusher is not configured")
	}
	return c.pusher.Push(ctx, c.registry)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
