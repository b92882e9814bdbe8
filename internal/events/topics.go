// Package events publishes normalized activity events to the session broker.
package events

import (
	"github.com/solvetrace/solvetrace/internal/config"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

// TopicMap resolves the broker topic for each normalized event type. The map
// is closed: unknown types route to the progress topic so no event is dropped
// on the producer side.
type TopicMap struct {
	byType       map[string]string
	defaultTopic string
}

// NewTopicMap builds the topic routing table from broker configuration.
func NewTopicMap(cfg config.BrokerConfig) TopicMap {
	return TopicMap{
		byType: map[string]string{
			sessiondomain.EventTypeCodeRun:         cfg.TopicSessionProgress,
			sessiondomain.EventTypeCodeSubmit:      cfg.TopicSessionSubmit,
			sessiondomain.EventTypeCodeActivity:    cfg.TopicSessionProgress,
			sessiondomain.EventTypeSessionStarted:  cfg.TopicSessionStarted,
			sessiondomain.EventTypeSessionProgress: cfg.TopicSessionProgress,
			sessiondomain.EventTypeSessionEnded:    cfg.TopicSessionEnded,
		},
		defaultTopic: cfg.TopicSessionProgress,
	}
}

// Resolve returns the topic for the given event type.
func (m TopicMap) Resolve(eventType string) string {
	if topic, ok := m.byType[eventType]; ok && topic != "" {
		return topic
	}
	return m.defaultTopic
}
