package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solvetrace/solvetrace/internal/aggregation"
	"github.com/solvetrace/solvetrace/internal/config"
)

type completionStub struct {
	calls   atomic.Int64
	handler func(call int64, w http.ResponseWriter, r *http.Request)
}

func (s *completionStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(s.calls.Add(1), w, r)
}

func writeCompletion(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":    "cmpl-test",
		"model": "sonar-pro",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(ClientParam{
		Cfg: config.Config{
			AI: config.AIConfig{
				BaseURL:     baseURL,
				APIKey:      "test-key",
				Model:       "sonar-pro",
				MaxTokens:   2000,
				Temperature: 0.2,
				Timeout:     5 * time.Second,
				MaxRetries:  2,
			},
		},
		Log: zap.NewNop(),
	})
	c.backoff = time.Millisecond
	return c
}

func TestAnalyzeReturnsCompletion(t *testing.T) {
	stub := &completionStub{handler: func(_ int64, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		writeCompletion(w, "Skill Rating: 4/5\nStrengths: steady progress.")
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	content, err := c.Analyze(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Contains(t, content, "Skill Rating: 4/5")
	assert.EqualValues(t, 1, stub.calls.Load())
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	stub := &completionStub{handler: func(call int64, w http.ResponseWriter, _ *http.Request) {
		if call < 3 {
			http.Error(w, "upstream overloaded", http.StatusInternalServerError)
			return
		}
		writeCompletion(w, "Code Quality Score: 3/5")
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	content, err := c.Analyze(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Contains(t, content, "3/5")
	assert.EqualValues(t, 3, stub.calls.Load())
}

func TestAnalyzeExhaustsRetries(t *testing.T) {
	stub := &completionStub{handler: func(_ int64, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusInternalServerError)
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Analyze(context.Background(), "analyze this")
	require.Error(t, err)
	assert.EqualValues(t, 3, stub.calls.Load())
}

func TestAnalyzeRejectsEmptyAndMarkerContent(t *testing.T) {
	for name, content := range map[string]string{
		"empty":  "   ",
		"marker": "Note: AI analysis temporarily unavailable, try later.",
	} {
		t.Run(name, func(t *testing.T) {
			stub := &completionStub{handler: func(_ int64, w http.ResponseWriter, _ *http.Request) {
				writeCompletion(w, content)
			}}
			srv := httptest.NewServer(stub)
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			_, err := c.Analyze(context.Background(), "analyze this")
			assert.ErrorIs(t, err, ErrEmptyCompletion)
		})
	}
}

func TestAnalyzeWithoutAPIKey(t *testing.T) {
	c := NewClient(ClientParam{Cfg: config.Config{}, Log: zap.NewNop()})
	_, err := c.Analyze(context.Background(), "analyze this")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, c.Configured())
}

func TestHealthy(t *testing.T) {
	stub := &completionStub{handler: func(_ int64, w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, "OK")
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	assert.NoError(t, c.Healthy(context.Background()))
}

func TestBuildAnalysisPrompt(t *testing.T) {
	summary := &aggregation.ActivitySummary{
		UserID:       "user-1",
		WindowStart:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		TotalEvents:  5,
		TotalRuns:    3,
		TotalSubmits: 2,
		Problems: []aggregation.ProblemAggregate{
			{
				Title:             "Two Sum",
				TotalRuns:         3,
				TotalSubmits:      2,
				Languages:         []string{"go"},
				RecentCodeSamples: []string{"func twoSumV1() {}", "func twoSumV2() {}"},
			},
		},
		Languages:  map[string]int{"go": 4, "python": 1},
		Categories: map[string]int{"Arrays": 5},
	}

	prompt := BuildAnalysisPrompt(summary)
	assert.Contains(t, prompt, "User ID: user-1")
	assert.Contains(t, prompt, "runs: 3, submits: 2")
	assert.Contains(t, prompt, "### Two Sum")
	assert.Contains(t, prompt, "go, python")
	assert.Contains(t, prompt, "Arrays (5 events)")
	assert.Contains(t, prompt, "Code sample 1 of 2")
	assert.Contains(t, prompt, "func twoSumV1() {}")
	assert.Contains(t, prompt, "Code sample 2 of 2")
	assert.Contains(t, prompt, "func twoSumV2() {}")
	assert.Contains(t, prompt, "Skill Rating: X/5")
	assert.Contains(t, prompt, "Areas for Improvement")
}

func TestBuildAnalysisPromptTruncatesCode(t *testing.T) {
	summary := &aggregation.ActivitySummary{
		UserID: "user-1",
		Problems: []aggregation.ProblemAggregate{
			{Title: "Big", RecentCodeSamples: []string{strings.Repeat("x", codeSampleLimit+500)}},
		},
		Languages: map[string]int{},
	}

	prompt := BuildAnalysisPrompt(summary)
	assert.NotContains(t, prompt, strings.Repeat("x", codeSampleLimit+1))
	assert.Contains(t, prompt, strings.Repeat("x", codeSampleLimit))
}
