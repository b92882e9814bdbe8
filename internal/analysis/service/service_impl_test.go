package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solvetrace/solvetrace/internal/aggregation"
	"github.com/solvetrace/solvetrace/internal/ai"
	"github.com/solvetrace/solvetrace/internal/analysis/domain"
	"github.com/solvetrace/solvetrace/internal/clock"
	obsmetrics "github.com/solvetrace/solvetrace/internal/observability/metrics"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

type fakeAI struct {
	narrative  string
	err        error
	healthyErr error
	configured bool
	calls      int
}

func (f *fakeAI) Analyze(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.narrative, f.err
}

func (f *fakeAI) Configured() bool { return f.configured }

func (f *fakeAI) Healthy(_ context.Context) error { return f.healthyErr }

func newTestAnalysisService(t *testing.T, name string, aiClient NarrativeClient) (*Service, *gorm.DB) {
	t.Helper()
	obsmetrics.ResetPipelineMetricsForTest()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&sessiondomain.ActivityEvent{}, &domain.AnalysisResult{}))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	log := zap.NewNop()
	svc := &Service{
		db:         gdb,
		log:        log,
		genID:      node,
		clock:      clock.NewFakeClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)),
		aggregator: aggregation.NewEngine(gdb, log),
		ai:         aiClient,
		pipeline:   obsmetrics.Pipeline(),
	}
	return svc, gdb
}

func seedActivity(t *testing.T, gdb *gorm.DB, node *snowflake.Node, userID, eventType, title, language string, at time.Time) {
	t.Helper()
	event := sessiondomain.ActivityEvent{
		ID:           node.Generate(),
		SessionID:    userID + "_" + title + "_1",
		UserID:       userID,
		EventType:    eventType,
		Platform:     "leetcode",
		Language:     language,
		ProblemID:    title,
		ProblemTitle: title,
		Code:         "func solve() {}",
		OccurredAt:   at,
		CreatedAt:    at,
	}
	require.NoError(t, gdb.Create(&event).Error)
}

func seedTwoRunOneSubmit(t *testing.T, gdb *gorm.DB, userID string) {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	seedActivity(t, gdb, node, userID, sessiondomain.EventTypeCodeRun, "Two Sum", "python", at)
	seedActivity(t, gdb, node, userID, sessiondomain.EventTypeCodeRun, "Two Sum", "python", at.Add(time.Minute))
	seedActivity(t, gdb, node, userID, sessiondomain.EventTypeCodeSubmit, "Two Sum", "python", at.Add(2*time.Minute))
}

func TestAnalyzeValidation(t *testing.T) {
	svc, _ := newTestAnalysisService(t, "analysis-validate", nil)

	_, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "  ", PeriodDays: 14})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u1", PeriodDays: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u1", PeriodDays: 366})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestAnalyzeNoActivity(t *testing.T) {
	svc, _ := newTestAnalysisService(t, "analysis-empty", nil)

	_, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "ghost", PeriodDays: 14})
	assert.ErrorIs(t, err, domain.ErrNoActivity)

	var count int64
	require.NoError(t, svc.db.Model(&domain.AnalysisResult{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAnalyzeHeuristicFallback(t *testing.T) {
	broken := &fakeAI{configured: true, err: errors.New("upstream timeout")}
	svc, gdb := newTestAnalysisService(t, "analysis-fallback", broken)
	seedTwoRunOneSubmit(t, gdb, "u1")

	resp, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u1", PeriodDays: 14})
	require.NoError(t, err)

	assert.Equal(t, domain.EngineHeuristic, resp.Engine)
	assert.InDelta(t, 0.65, resp.Confidence, 1e-9)
	assert.InDelta(t, 3.0, resp.InitialApproachRating, 1e-9)
	assert.InDelta(t, 4.8, resp.CodeQualityScore, 1e-9)
	assert.NotEmpty(t, resp.Summary)
	assert.NotEmpty(t, resp.Recommendations)
	assert.Equal(t, 1, broken.calls)

	var stored domain.AnalysisResult
	require.NoError(t, gdb.Where("user_id = ?", "u1").First(&stored).Error)
	assert.Equal(t, domain.EngineHeuristic, stored.AIModelUsed)
	assert.Equal(t, 14, stored.AnalysisPeriodDays)
	assert.Equal(t, 1, stored.TotalProblemsAttempted)
	assert.Equal(t, 2, stored.TotalRuns)
	assert.Equal(t, 1, stored.TotalSubmits)
	assert.Equal(t, "python", stored.MostUsedLanguage)

	var categories map[string]int
	require.NoError(t, json.Unmarshal([]byte(stored.ProblemCategories), &categories))
	assert.Equal(t, map[string]int{"Other": 3}, categories)

	assert.NotEmpty(t, stored.ProblemSolvingStyle)
	assert.NotEmpty(t, stored.Strengths)
	assert.NotEmpty(t, stored.Weaknesses)

	var suggestions domain.ImprovementSuggestions
	require.NoError(t, json.Unmarshal([]byte(stored.ImprovementSuggestions), &suggestions))
	assert.NotEmpty(t, suggestions.NextSteps)
	assert.Contains(t, suggestions.Timeline, "2-4 weeks")
}

func TestAnalyzeAIPath(t *testing.T) {
	working := &fakeAI{configured: true, narrative: sampleNarrative}
	svc, gdb := newTestAnalysisService(t, "analysis-ai", working)
	seedTwoRunOneSubmit(t, gdb, "u2")

	resp, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u2", PeriodDays: 14})
	require.NoError(t, err)

	assert.Equal(t, domain.EnginePerplexity, resp.Engine)
	assert.InDelta(t, 0.90, resp.Confidence, 1e-9)
	assert.InDelta(t, 4.2, resp.InitialApproachRating, 1e-9)
	assert.InDelta(t, 3.8, resp.CodeQualityScore, 1e-9)
	assert.Equal(t, []string{
		"Practice graph traversal problems",
		"Write tests before the first run",
	}, resp.Recommendations)
	assert.Contains(t, resp.Summary, "steady iterative practice rhythm")

	var stored domain.AnalysisResult
	require.NoError(t, gdb.Where("user_id = ?", "u2").First(&stored).Error)
	assert.Equal(t, domain.EnginePerplexity, stored.AIModelUsed)
	assert.Contains(t, stored.ProblemSolvingStyle, "brute-force sketch")
}

func TestAnalyzeBackfillsMissingFields(t *testing.T) {
	partial := &fakeAI{configured: true, narrative: "A thorough review of the submitted sessions shows promising habits overall.\n\nSkill Rating: 4/5\n"}
	svc, gdb := newTestAnalysisService(t, "analysis-partial", partial)
	seedTwoRunOneSubmit(t, gdb, "u3")

	resp, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u3", PeriodDays: 14})
	require.NoError(t, err)

	assert.InDelta(t, 4.0, resp.InitialApproachRating, 1e-9)
	assert.InDelta(t, 4.8, resp.CodeQualityScore, 1e-9)

	var stored domain.AnalysisResult
	require.NoError(t, gdb.Where("user_id = ?", "u3").First(&stored).Error)
	assert.Contains(t, stored.ProblemSolvingStyle, "Confident problem solver")
	assert.Contains(t, stored.Strengths, "Active coding practice")
}

func TestAnalyzeMarkerContentFallsBack(t *testing.T) {
	degraded := &fakeAI{configured: true, narrative: "AI analysis temporarily unavailable, please retry."}
	svc, gdb := newTestAnalysisService(t, "analysis-marker", degraded)
	seedTwoRunOneSubmit(t, gdb, "u4")

	resp, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u4", PeriodDays: 14})
	require.NoError(t, err)
	assert.Equal(t, domain.EngineHeuristic, resp.Engine)
}

func TestAnalyzeSkipsAIWhenUnconfigured(t *testing.T) {
	unconfigured := &fakeAI{configured: false, narrative: sampleNarrative}
	svc, gdb := newTestAnalysisService(t, "analysis-unconfigured", unconfigured)
	seedTwoRunOneSubmit(t, gdb, "u5")

	resp, err := svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u5", PeriodDays: 14})
	require.NoError(t, err)
	assert.Equal(t, domain.EngineHeuristic, resp.Engine)
	assert.Zero(t, unconfigured.calls)
}

func TestGetLatest(t *testing.T) {
	svc, gdb := newTestAnalysisService(t, "analysis-latest", nil)
	seedTwoRunOneSubmit(t, gdb, "u6")

	_, err := svc.GetLatest(context.Background(), "u6")
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)

	_, err = svc.Analyze(context.Background(), domain.AnalyzeRequest{UserID: "u6", PeriodDays: 14})
	require.NoError(t, err)

	latest, err := svc.GetLatest(context.Background(), "u6")
	require.NoError(t, err)
	assert.Equal(t, "u6", latest.UserID)
	assert.Equal(t, domain.EngineHeuristic, latest.AIModelUsed)

	_, err = svc.GetLatest(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestHealthWithoutClient(t *testing.T) {
	svc, _ := newTestAnalysisService(t, "analysis-health", nil)
	assert.ErrorIs(t, svc.Health(context.Background()), ai.ErrNotConfigured)

	healthy := &fakeAI{configured: true}
	svc.ai = healthy
	assert.NoError(t, svc.Health(context.Background()))
}
