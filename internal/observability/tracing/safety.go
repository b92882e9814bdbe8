package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

var allowedSpanKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"event_type":              {},
	"topic":                   {},
	"engine":                  {},
	"analysis.stage":          {},
}

// SafeAttributes strips span attributes that could carry payload data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError returns an error suitable for span recording. Submitted source
// code and prompt bodies must never reach the trace backend, so only the
// error class is preserved.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(classifyErrorMessage(err))
}

func classifyErrorMessage(err error) string {
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
