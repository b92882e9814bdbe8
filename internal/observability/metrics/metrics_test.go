package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_type", "CODE_RUN"),
		attribute.String("session_id", "u1_two-sum_1700000000000"),
		attribute.String("topic", "session.progress"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "event_type" && attrs[1].Key != "event_type" {
		t.Fatalf("expected event_type to be retained")
	}
	if attrs[0].Key != "topic" && attrs[1].Key != "topic" {
		t.Fatalf("expected topic to be retained")
	}
}
