package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/solvetrace/solvetrace/internal/config"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"github.com/solvetrace/solvetrace/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetadataSessionID keys the session identity on every published message,
// letting the broker partition consumers by session.
const MetadataSessionID = "session_id"

// SessionEventPayload is the wire form of a published activity event. Unlike
// the cache snapshot it carries the full event, source code included, so
// real-time consumers never have to read the store.
type SessionEventPayload struct {
	EventID      string         `json:"event_id"`
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	EventType    string         `json:"event_type"`
	Platform     string         `json:"platform,omitempty"`
	Language     string         `json:"language,omitempty"`
	ProblemID    string         `json:"problem_id"`
	ProblemTitle string         `json:"problem_title,omitempty"`
	Code         string         `json:"code,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Publisher forwards activity events to the session broker. Delivery is best
// effort: failures are reported to the caller for logging and metrics but
// must never fail ingestion.
type Publisher struct {
	publisher message.Publisher
	topics    TopicMap
	breaker   *gobreaker.CircuitBreaker[any]
	log       *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewNATSPublisher builds the production publisher over NATS.
func NewNATSPublisher(cfg config.BrokerConfig, log *zap.Logger) (*Publisher, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream:   wmnats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	return NewPublisher(pub, NewTopicMap(cfg), log), nil
}

// NewPublisher wraps an existing watermill publisher. Tests pass a GoChannel
// pubsub here.
func NewPublisher(pub message.Publisher, topics TopicMap, log *zap.Logger) *Publisher {
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "session-events",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Publisher{
		publisher: pub,
		topics:    topics,
		breaker:   breaker,
		log:       log.Named("events.publisher"),
	}
}

// PublishActivity routes the event to its topic and publishes it keyed by session.
func (p *Publisher) PublishActivity(ctx context.Context, event *sessiondomain.ActivityEvent) (string, error) {
	topic := p.topics.Resolve(event.EventType)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return topic, fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	payload := SessionEventPayload{
		EventID:      event.ID.String(),
		SessionID:    event.SessionID,
		UserID:       event.UserID,
		EventType:    event.EventType,
		Platform:     event.Platform,
		Language:     event.Language,
		ProblemID:    event.ProblemID,
		ProblemTitle: event.ProblemTitle,
		Code:         event.Code,
		Metadata:     event.Metadata,
		OccurredAt:   event.OccurredAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return topic, fmt.Errorf("marshal session event: %w", err)
	}

	msg := message.NewMessage(event.ID.String(), data)
	msg.Metadata.Set(MetadataSessionID, event.SessionID)
	msg.Metadata.Set("event_type", event.EventType)

	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		msg.Metadata.Set("correlation_id", cid)
	}
	correlation.InjectTraceIntoMetadata(msg.Metadata, trace.SpanFromContext(ctx))

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	return topic, err
}

// Close shuts down the underlying publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
