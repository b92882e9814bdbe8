package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solvetrace/solvetrace/internal/aggregation"
	"github.com/solvetrace/solvetrace/internal/ai"
	"github.com/solvetrace/solvetrace/internal/analysis/domain"
	"github.com/solvetrace/solvetrace/internal/clock"
	"github.com/solvetrace/solvetrace/internal/cloudmetrics"
	"github.com/solvetrace/solvetrace/internal/config"
	obsmetrics "github.com/solvetrace/solvetrace/internal/observability/metrics"
)

const (
	minPeriodDays = 1
	maxPeriodDays = 365
)

// NarrativeClient is the AI side of the orchestrator. The production
// implementation is the Perplexity client.
type NarrativeClient interface {
	Analyze(ctx context.Context, prompt string) (string, error)
	Configured() bool
	Healthy(ctx context.Context) error
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Aggregator *aggregation.Engine
	AI         *ai.Client                   `optional:"true"`
	Holder     *config.AnalysisConfigHolder `optional:"true"`
	Metrics    *cloudmetrics.CloudMetrics   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics          `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	aggregator *aggregation.Engine
	ai         NarrativeClient
	holder     *config.AnalysisConfigHolder
	metrics    *cloudmetrics.CloudMetrics
	obsMetrics *obsmetrics.Metrics
	pipeline   *obsmetrics.PipelineMetrics
}

func NewService(p ServiceParam) domain.Service {
	svc := &Service{
		db:  p.DB,
		log: p.Log.Named("analysis.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		aggregator: p.Aggregator,
		holder:     p.Holder,
		metrics:    p.Metrics,
		obsMetrics: p.ObsMetrics,
		pipeline:   obsmetrics.Pipeline(),
	}
	if p.AI != nil {
		svc.ai = p.AI
	}
	return svc
}

// Analyze runs the full pipeline for one user: validate, aggregate the
// trailing window, obtain a narrative (AI first, deterministic heuristics on
// any AI failure), extract structured fields, persist, respond. An AI outage
// is never surfaced as a caller-facing failure.
func (s *Service) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeResponse, error) {
	resp, err := s.analyze(ctx, req)
	if err != nil {
		s.pipeline.IncRun("failure")
		return nil, err
	}
	s.pipeline.IncRun("success")
	return resp, nil
}

func (s *Service) analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalyzeResponse, error) {
	userID := strings.TrimSpace(req.UserID)

	err := s.stage(obsmetrics.PipelineStageValidate, func() error {
		if userID == "" {
			return domain.ErrInvalidUserID
		}
		if req.PeriodDays < minPeriodDays || req.PeriodDays > maxPeriodDays {
			return domain.ErrInvalidPeriod
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var summary *aggregation.ActivitySummary
	err = s.stage(obsmetrics.PipelineStageAggregate, func() error {
		since := s.clock.Now().UTC().AddDate(0, 0, -req.PeriodDays)
		var aggErr error
		summary, aggErr = s.aggregator.Aggregate(ctx, userID, since)
		if errors.Is(aggErr, aggregation.ErrNoActivity) {
			return domain.ErrNoActivity
		}
		return aggErr
	})
	if err != nil {
		return nil, err
	}

	narrative, engine, confidence := s.obtainNarrative(ctx, summary, req.PeriodDays)

	analysisCfg := s.analysisConfig()
	var result *domain.AnalysisResult
	err = s.stage(obsmetrics.PipelineStageExtractFields, func() error {
		var buildErr error
		result, buildErr = s.buildResult(summary, req.PeriodDays, narrative, engine, confidence)
		return buildErr
	})
	if err != nil {
		return nil, err
	}

	result.ID = s.genID.Generate()
	result.UserID = userID
	result.AnalysisDate = s.clock.Now().UTC()

	err = s.stage(obsmetrics.PipelineStagePersist, func() error {
		return s.db.WithContext(ctx).Create(result).Error
	})
	if err != nil {
		return nil, err
	}

	s.pipeline.IncEngineUsed(engine)
	if s.metrics != nil {
		go s.metrics.IncAnalysisCompleted(engine)
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordAnalysis(ctx, engine)
	}

	s.log.Info("analysis completed",
		zap.String("user_id", userID),
		zap.String("engine", engine),
		zap.Int("period_days", req.PeriodDays),
		zap.Float64("confidence", confidence),
	)

	return &domain.AnalyzeResponse{
		AnalysisID:            result.ID.String(),
		Summary:               ExtractSummary(narrative, analysisCfg.SummaryMaxLength),
		InitialApproachRating: result.InitialApproachRating,
		CodeQualityScore:      result.CodeQualityScore,
		Recommendations:       recommendationsFrom(result.ImprovementSuggestions),
		Engine:                engine,
		Confidence:            confidence,
	}, nil
}

// obtainNarrative tries the AI path and falls back to the deterministic
// generator. The fallback cannot fail, so the pipeline always proceeds.
func (s *Service) obtainNarrative(ctx context.Context, summary *aggregation.ActivitySummary, periodDays int) (string, string, float64) {
	cfg := s.analysisConfig()

	if s.ai != nil && s.ai.Configured() {
		start := time.Now()
		narrative, err := s.ai.Analyze(ctx, ai.BuildAnalysisPrompt(summary))
		s.pipeline.ObserveStageDuration(obsmetrics.PipelineStageAIAttempt, time.Since(start))
		if err == nil && strings.TrimSpace(narrative) != "" && !strings.Contains(narrative, cfg.UnavailableMarker) {
			s.pipeline.IncAIAttempt("success")
			return narrative, domain.EnginePerplexity, cfg.AIConfidence
		}
		s.pipeline.IncAIAttempt("failure")
		s.pipeline.IncStageError(obsmetrics.PipelineStageAIAttempt, err)
		s.log.Warn("ai analysis failed, using heuristic fallback",
			zap.String("user_id", summary.UserID),
			zap.Error(err),
		)
	}

	start := time.Now()
	narrative := HeuristicNarrative(summary, periodDays)
	s.pipeline.ObserveStageDuration(obsmetrics.PipelineStageHeuristic, time.Since(start))
	return narrative, domain.EngineHeuristic, cfg.FallbackConfidence
}

// buildResult extracts structured fields from the narrative and backfills
// every parse miss from the heuristic generator.
func (s *Service) buildResult(summary *aggregation.ActivitySummary, periodDays int, narrative, engine string, confidence float64) (*domain.AnalysisResult, error) {
	rating, ok := ExtractRating(narrative)
	if !ok {
		rating = ApproachRating(summary)
	}
	quality, ok := ExtractQualityScore(narrative)
	if !ok {
		quality = QualityScore(summary)
	}

	style, ok := ExtractSection(narrative, "Problem-Solving Style")
	if !ok {
		style = ProblemSolvingStyle(summary)
	}
	strengths, ok := ExtractSection(narrative, "Strengths", "Key Strengths")
	if !ok {
		strengths = StrengthsText(summary)
	}
	weaknesses, ok := ExtractSection(narrative, "Areas for Improvement", "Weaknesses")
	if !ok {
		weaknesses = WeaknessesText(summary, periodDays)
	}

	suggestions := Suggestions(summary)
	if block, found := ExtractSectionBlock(narrative, "Recommendations"); found {
		if bullets := ExtractBullets(block); len(bullets) > 0 {
			suggestions.FocusAreas = bullets
		}
	}

	categoriesJSON, err := json.Marshal(summary.Categories)
	if err != nil {
		return nil, err
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return nil, err
	}

	return &domain.AnalysisResult{
		AnalysisPeriodDays:     periodDays,
		TotalProblemsAttempted: summary.ProblemCount(),
		TotalRuns:              summary.TotalRuns,
		TotalSubmits:           summary.TotalSubmits,
		UniqueLanguagesUsed:    summary.LanguageCount(),
		MostUsedLanguage:       summary.MostUsedLanguage(),
		ProblemCategories:      string(categoriesJSON),
		InitialApproachRating:  clampScore(rating),
		CodeQualityScore:       clampScore(quality),
		ProblemSolvingStyle:    style,
		Strengths:              strengths,
		Weaknesses:             weaknesses,
		ImprovementSuggestions: string(suggestionsJSON),
		AIModelUsed:            engine,
		AnalysisConfidence:     confidence,
	}, nil
}

// GetLatest returns the most recent persisted analysis for a user.
func (s *Service) GetLatest(ctx context.Context, userID string) (*domain.AnalysisResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	var result domain.AnalysisResult
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("analysis_date DESC").
		Order("id DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Health reports whether the AI path is reachable.
func (s *Service) Health(ctx context.Context) error {
	if s.ai == nil {
		return ai.ErrNotConfigured
	}
	return s.ai.Healthy(ctx)
}

func (s *Service) analysisConfig() config.AnalysisConfig {
	return s.holder.Get()
}

func (s *Service) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.pipeline.ObserveStageDuration(name, time.Since(start))
	if err != nil {
		s.pipeline.IncStageError(name, err)
	}
	return err
}

func recommendationsFrom(suggestionsJSON string) []string {
	var suggestions domain.ImprovementSuggestions
	if err := json.Unmarshal([]byte(suggestionsJSON), &suggestions); err != nil || len(suggestions.FocusAreas) == 0 {
		return []string{"Continue practicing regularly", "Focus on problem-solving patterns"}
	}
	return suggestions.FocusAreas
}
