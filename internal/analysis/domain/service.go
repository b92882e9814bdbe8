package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidUserID    = errors.New("invalid_user_id")
	ErrInvalidPeriod    = errors.New("analysis_period_out_of_range")
	ErrNoActivity       = errors.New("no_coding_activity")
	ErrAnalysisNotFound = errors.New("analysis_not_found")
)

// AnalyzeRequest triggers an on-demand analysis over a trailing window.
type AnalyzeRequest struct {
	UserID     string `json:"userId"`
	PeriodDays int    `json:"periodDays"`
}

// AnalyzeResponse is the caller-facing slice of a persisted result.
type AnalyzeResponse struct {
	AnalysisID            string   `json:"analysisId"`
	Summary               string   `json:"summary"`
	InitialApproachRating float64  `json:"initialApproachRating"`
	CodeQualityScore      float64  `json:"codeQualityScore"`
	Recommendations       []string `json:"recommendations"`
	Engine                string   `json:"engine"`
	Confidence            float64  `json:"confidence"`
}

// ImprovementSuggestions is the structured suggestions object serialized
// into AnalysisResult.ImprovementSuggestions.
type ImprovementSuggestions struct {
	FocusAreas []string `json:"focus_areas"`
	NextSteps  []string `json:"next_steps"`
	Resources  []string `json:"resources"`
	Timeline   string   `json:"timeline"`
}

type Service interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error)
	GetLatest(ctx context.Context, userID string) (*AnalysisResult, error)
	Health(ctx context.Context) error
}
