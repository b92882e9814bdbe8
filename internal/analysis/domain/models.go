package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Engine tags persisted with every analysis result.
const (
	EnginePerplexity = "perplexity-ai"
	EngineHeuristic  = "heuristic-fallback"
)

// AnalysisResult is the persisted outcome of one analysis invocation.
// Rows are immutable after insert.
type AnalysisResult struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID                 string       `gorm:"size:255;not null;index:idx_analysis_user_date,priority:1" json:"user_id"`
	AnalysisDate           time.Time    `gorm:"index:idx_analysis_user_date,priority:2" json:"analysis_date"`
	AnalysisPeriodDays     int          `json:"analysis_period_days"`
	TotalProblemsAttempted int          `json:"total_problems_attempted"`
	TotalRuns              int          `json:"total_runs"`
	TotalSubmits           int          `json:"total_submits"`
	UniqueLanguagesUsed    int          `json:"unique_languages_used"`
	MostUsedLanguage       string       `gorm:"size:64" json:"most_used_language"`
	ProblemCategories      string       `gorm:"type:text" json:"problem_categories"`
	InitialApproachRating  float64      `json:"initial_approach_rating"`
	CodeQualityScore       float64      `json:"code_quality_score"`
	ProblemSolvingStyle    string       `gorm:"type:text" json:"problem_solving_style"`
	Strengths              string       `gorm:"type:text" json:"strengths"`
	Weaknesses             string       `gorm:"type:text" json:"weaknesses"`
	ImprovementSuggestions string       `gorm:"type:text" json:"improvement_suggestions"`
	AIModelUsed            string       `gorm:"size:64" json:"ai_model_used"`
	AnalysisConfidence     float64      `json:"analysis_confidence"`
	CreatedAt              time.Time    `json:"created_at"`
}

func (AnalysisResult) TableName() string {
	return "coding_analysis_results"
}
