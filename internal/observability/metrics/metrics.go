package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsIngested   metric.Int64Counter
	cacheFailures    metric.Int64Counter
	publishes        metric.Int64Counter
	publishFailures  metric.Int64Counter
	analyses         metric.Int64Counter
	aiRetries        metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "solvetrace"
	}
	meter := provider.Meter(name)

	eventsIngested, err := meter.Int64Counter("solvetrace_events_ingested_total")
	if err != nil {
		return nil, err
	}
	cacheFailures, err := meter.Int64Counter("solvetrace_session_cache_failures_total")
	if err != nil {
		return nil, err
	}
	publishes, err := meter.Int64Counter("solvetrace_event_publishes_total")
	if err != nil {
		return nil, err
	}
	publishFailures, err := meter.Int64Counter("solvetrace_event_publish_failures_total")
	if err != nil {
		return nil, err
	}
	analyses, err := meter.Int64Counter("solvetrace_analyses_total")
	if err != nil {
		return nil, err
	}
	aiRetries, err := meter.Int64Counter("solvetrace_ai_retries_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("solvetrace_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("solvetrace_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsIngested:   eventsIngested,
		cacheFailures:    cacheFailures,
		publishes:        publishes,
		publishFailures:  publishFailures,
		analyses:         analyses,
		aiRetries:        aiRetries,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordEventIngested increments ingested event counts.
func (m *Metrics) RecordEventIngested(ctx context.Context, eventType, platform string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("platform", strings.TrimSpace(platform)),
	)
	m.eventsIngested.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheFailure increments session cache write failures.
func (m *Metrics) RecordCacheFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.cacheFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPublish increments successful broker publishes per topic.
func (m *Metrics) RecordPublish(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("topic", strings.TrimSpace(topic)))
	m.publishes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPublishFailure increments failed broker publishes per topic.
func (m *Metrics) RecordPublishFailure(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("topic", strings.TrimSpace(topic)))
	m.publishFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAnalysis increments completed analyses per engine.
func (m *Metrics) RecordAnalysis(ctx context.Context, engine string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("engine", strings.TrimSpace(engine)))
	m.analyses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAIRetry increments AI call retry counts.
func (m *Metrics) RecordAIRetry(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.aiRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, userID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("user_id", strings.TrimSpace(userID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, userID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("user_id", strings.TrimSpace(userID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"event_type":  {},
	"platform":    {},
	"topic":       {},
	"engine":      {},
	"reason":      {},
	"endpoint":    {},
	"user_id":     {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
