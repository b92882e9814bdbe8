package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyPipelineErrorType(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: PipelineErrorTypeDeadlineExceeded,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: PipelineErrorTypeDeadlineExceeded,
		},
		{
			name: "duplicate_key",
			err:  gorm.ErrDuplicatedKey,
			want: PipelineErrorTypeDB,
		},
		{
			name: "pg_error",
			err:  &pgconn.PgError{Code: "40001"},
			want: PipelineErrorTypeDB,
		},
		{
			name: "not_found_is_not_db",
			err:  gorm.ErrRecordNotFound,
			want: PipelineErrorTypeUnknown,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: PipelineErrorTypeUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPipelineErrorType(tc.err); got != tc.want {
				t.Fatalf("expected type %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsPipelineErrorRetryable(t *testing.T) {
	if !IsPipelineErrorRetryable(context.DeadlineExceeded) {
		t.Fatalf("expected deadline to be retryable")
	}
	if !IsPipelineErrorRetryable(&pgconn.PgError{Code: "55P03"}) {
		t.Fatalf("expected lock timeout to be retryable")
	}
	if IsPipelineErrorRetryable(errors.New("boom")) {
		t.Fatalf("expected unknown error to be terminal")
	}
}

func TestIncEngineUsed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newPipelineMetrics(registry, Config{
		ServiceName: "solvetrace",
		Environment: "test",
	})

	metrics.IncEngineUsed("heuristic-fallback")
	metrics.IncEngineUsed("heuristic-fallback")
	metrics.IncEngineUsed("perplexity-ai")

	got := testutil.ToFloat64(metrics.engineUsed.WithLabelValues("heuristic-fallback"))
	if got != 2 {
		t.Fatalf("expected 2 fallback analyses, got %v", got)
	}
}
