package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solvetrace/solvetrace/internal/aggregation"
)

func summaryWith(runs, submits, problems, languages, categories int) *aggregation.ActivitySummary {
	s := &aggregation.ActivitySummary{
		TotalEvents:  runs + submits,
		TotalRuns:    runs,
		TotalSubmits: submits,
		Languages:    map[string]int{},
		Categories:   map[string]int{},
	}
	langNames := []string{"python", "go", "java", "cpp", "rust"}
	for i := 0; i < languages && i < len(langNames); i++ {
		s.Languages[langNames[i]] = i + 1
	}
	catNames := []string{"Arrays", "Strings", "Trees", "Graphs", "Sorting"}
	for i := 0; i < categories && i < len(catNames); i++ {
		s.Categories[catNames[i]] = i + 1
	}
	for i := 0; i < problems; i++ {
		s.Problems = append(s.Problems, aggregation.ProblemAggregate{
			Title:        string(rune('A' + i)),
			TotalRuns:    runs,
			TotalSubmits: submits,
		})
	}
	return s
}

func TestApproachRating(t *testing.T) {
	tests := []struct {
		name    string
		summary *aggregation.ActivitySummary
		want    float64
	}{
		{"baseline two runs one submit", summaryWith(2, 1, 1, 1, 1), 3.0},
		{"many runs", summaryWith(11, 1, 1, 1, 1), 3.5},
		{"many submits", summaryWith(2, 6, 1, 1, 1), 3.3},
		{"many problems", summaryWith(2, 1, 6, 1, 1), 3.4},
		{"multiple languages", summaryWith(2, 1, 1, 2, 1), 3.2},
		{"many categories", summaryWith(2, 1, 1, 1, 4), 3.2},
		{"all bonuses", summaryWith(11, 6, 6, 2, 4), 4.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ApproachRating(tt.summary), 1e-9)
		})
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name    string
		summary *aggregation.ActivitySummary
		want    float64
	}{
		{"tight ratio with high submit rate", summaryWith(2, 1, 1, 1, 1), 4.8},
		{"moderate ratio", summaryWith(9, 3, 10, 1, 1), 4.0},
		{"sloppy ratio", summaryWith(14, 2, 10, 1, 1), 3.2},
		{"no submits", summaryWith(8, 0, 3, 1, 1), 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, QualityScore(tt.summary), 1e-9)
		})
	}
}

func TestScoresStayInRange(t *testing.T) {
	extremes := []*aggregation.ActivitySummary{
		summaryWith(0, 0, 0, 0, 0),
		summaryWith(500, 200, 60, 5, 5),
		summaryWith(500, 1, 1, 1, 1),
	}
	for _, s := range extremes {
		rating := ApproachRating(s)
		quality := QualityScore(s)
		assert.GreaterOrEqual(t, rating, 1.0)
		assert.LessOrEqual(t, rating, 5.0)
		assert.GreaterOrEqual(t, quality, 1.0)
		assert.LessOrEqual(t, quality, 5.0)
	}
}

func TestProblemSolvingStyle(t *testing.T) {
	iterative := ProblemSolvingStyle(summaryWith(10, 2, 1, 1, 1))
	assert.Contains(t, iterative, "Iterative problem solver")

	confident := ProblemSolvingStyle(summaryWith(2, 2, 1, 1, 1))
	assert.Contains(t, confident, "Confident problem solver")

	versatile := ProblemSolvingStyle(summaryWith(2, 2, 1, 3, 3))
	assert.Contains(t, versatile, "versatility")
	assert.Contains(t, versatile, "diverse categories")
}

func TestStrengthsText(t *testing.T) {
	base := StrengthsText(summaryWith(1, 0, 1, 1, 1))
	assert.Equal(t, "Active coding practice", base)

	full := StrengthsText(summaryWith(6, 3, 1, 2, 4))
	assert.Contains(t, full, "Regular practice habits")
	assert.Contains(t, full, "Language versatility")
	assert.Contains(t, full, "Diverse problem-solving approach")
	assert.Contains(t, full, "Good solution completion rate")
}

func TestWeaknessesText(t *testing.T) {
	short := WeaknessesText(summaryWith(2, 1, 1, 2, 3), 7)
	assert.Contains(t, short, "Limited analysis period")

	none := WeaknessesText(summaryWith(4, 2, 1, 2, 3), 30)
	assert.Equal(t, "Areas for continued growth and learning", none)

	ratio := WeaknessesText(summaryWith(20, 2, 1, 2, 3), 30)
	assert.Contains(t, ratio, "High run-to-submit ratio")
}

func TestSuggestionsTiers(t *testing.T) {
	beginner := Suggestions(summaryWith(2, 1, 3, 1, 1))
	assert.Contains(t, beginner.NextSteps[0], "15-20 problems")
	assert.Contains(t, beginner.FocusAreas[0], "Expand into new problem categories")
	assert.NotEmpty(t, beginner.Resources)
	assert.Contains(t, beginner.Timeline, "2-4 weeks")

	intermediate := Suggestions(summaryWith(30, 15, 20, 2, 4))
	assert.Contains(t, intermediate.NextSteps[0], "medium-difficulty")

	advanced := Suggestions(summaryWith(200, 80, 60, 2, 4))
	assert.Contains(t, advanced.NextSteps[0], "hard problems")
	assert.Contains(t, advanced.NextSteps, "Join coding competitions or daily challenges")
}

func TestHeuristicNarrativeSections(t *testing.T) {
	narrative := HeuristicNarrative(summaryWith(6, 3, 2, 2, 2), 30)
	assert.Contains(t, narrative, "**Problem-Solving Style**")
	assert.Contains(t, narrative, "**Strengths**")
	assert.Contains(t, narrative, "**Areas for Improvement**")
	assert.Contains(t, narrative, "**Recommendations**")
}
