package service

import (
	"fmt"
	"strings"

	"github.com/solvetrace/solvetrace/internal/aggregation"
	"github.com/solvetrace/solvetrace/internal/analysis/domain"
)

// The heuristic generator is a deterministic stand-in for the AI narrative.
// Every field it produces has the same shape as the extracted AI fields, so
// the orchestrator can backfill any parse miss from here.

const (
	ratingFloor = 1.0
	ratingCeil  = 5.0
)

func clampScore(v float64) float64 {
	if v < ratingFloor {
		return ratingFloor
	}
	if v > ratingCeil {
		return ratingCeil
	}
	return v
}

// ApproachRating scores how the user approaches problems from raw volume
// and breadth signals.
func ApproachRating(s *aggregation.ActivitySummary) float64 {
	rating := 3.0
	if s.TotalRuns > 10 {
		rating += 0.5
	}
	if s.TotalSubmits > 5 {
		rating += 0.3
	}
	if s.ProblemCount() > 5 {
		rating += 0.4
	}
	if s.LanguageCount() > 1 {
		rating += 0.2
	}
	if len(s.Categories) > 3 {
		rating += 0.2
	}
	return clampScore(rating)
}

// QualityScore scores solution quality from the run-to-submit ratio and the
// per-problem submit rate.
func QualityScore(s *aggregation.ActivitySummary) float64 {
	score := 3.5
	if s.TotalSubmits > 0 {
		ratio := float64(s.TotalRuns) / float64(s.TotalSubmits)
		switch {
		case ratio <= 2:
			score += 1.0
		case ratio <= 3:
			score += 0.5
		case ratio > 6:
			score -= 0.3
		}
	}
	if s.ProblemCount() > 0 && s.TotalSubmits > 0 {
		if float64(s.TotalSubmits)/float64(s.ProblemCount()) > 0.7 {
			score += 0.3
		}
	}
	return clampScore(score)
}

// ProblemSolvingStyle describes the user's working style in prose.
func ProblemSolvingStyle(s *aggregation.ActivitySummary) string {
	var b strings.Builder
	if s.TotalRuns > s.TotalSubmits*2 {
		b.WriteString("Iterative problem solver who thoroughly tests code before submission. ")
	} else {
		b.WriteString("Confident problem solver with a focused and efficient approach. ")
	}
	if s.LanguageCount() > 1 {
		b.WriteString("Demonstrates versatility by using multiple programming languages. ")
	}
	if len(s.Categories) > 2 {
		b.WriteString("Shows breadth in problem-solving by tackling diverse categories. ")
	}
	return strings.TrimSpace(b.String())
}

// StrengthsText lists observed strengths, always starting with the
// active-practice baseline.
func StrengthsText(s *aggregation.ActivitySummary) string {
	strengths := []string{"Active coding practice"}
	if s.TotalRuns > 5 {
		strengths = append(strengths, "Regular practice habits")
	}
	if s.LanguageCount() > 1 {
		strengths = append(strengths, "Language versatility")
	}
	if len(s.Categories) > 3 {
		strengths = append(strengths, "Diverse problem-solving approach")
	}
	if float64(s.TotalSubmits) > float64(s.TotalRuns)*0.3 {
		strengths = append(strengths, "Good solution completion rate")
	}
	return strings.Join(strengths, ", ")
}

// WeaknessesText lists growth areas, with a generic placeholder when none of
// the signals fire.
func WeaknessesText(s *aggregation.ActivitySummary, periodDays int) string {
	var weaknesses []string
	if periodDays < 14 {
		weaknesses = append(weaknesses, "Limited analysis period")
	}
	if len(s.Categories) <= 2 {
		weaknesses = append(weaknesses, "Need more diverse problem categories")
	}
	if s.LanguageCount() == 1 {
		weaknesses = append(weaknesses, "Could benefit from exploring multiple programming languages")
	}
	if s.TotalRuns > s.TotalSubmits*5 {
		weaknesses = append(weaknesses, "High run-to-submit ratio suggests room for improvement in solution confidence")
	}
	if len(weaknesses) == 0 {
		weaknesses = append(weaknesses, "Areas for continued growth and learning")
	}
	return strings.Join(weaknesses, ", ")
}

// Suggestions builds the structured improvement plan from the same signals.
func Suggestions(s *aggregation.ActivitySummary) domain.ImprovementSuggestions {
	var focusAreas, nextSteps, resources []string

	if len(s.Categories) <= 2 {
		focusAreas = append(focusAreas, "Expand into new problem categories (Graphs, Dynamic Programming, Trees)")
		resources = append(resources, "LeetCode problem categories guide")
	}
	if s.LanguageCount() == 1 {
		focusAreas = append(focusAreas, "Learn a second programming language (Python/Java/C++)")
		resources = append(resources, "Multi-language algorithm practice")
	}

	var ratio float64
	if s.TotalSubmits > 0 {
		ratio = float64(s.TotalRuns) / float64(s.TotalSubmits)
	}
	if ratio > 4 {
		focusAreas = append(focusAreas, "Improve initial problem analysis to reduce testing iterations")
		resources = append(resources, "Problem-solving frameworks and pattern recognition")
	} else if ratio < 1.5 {
		focusAreas = append(focusAreas, "Increase code testing and edge case consideration")
	}

	switch {
	case s.ProblemCount() < 10:
		nextSteps = append(nextSteps,
			"Complete 15-20 problems in the next month",
			"Focus on fundamental data structures (Arrays, LinkedLists, Stacks)",
		)
	case s.ProblemCount() < 50:
		nextSteps = append(nextSteps,
			"Progress to medium-difficulty problems",
			"Study time and space complexity analysis",
		)
	default:
		nextSteps = append(nextSteps,
			"Tackle hard problems and optimize existing solutions",
			"Explore system design concepts",
		)
	}
	nextSteps = append(nextSteps,
		"Join coding competitions or daily challenges",
		"Review and optimize your most challenging solutions",
	)

	return domain.ImprovementSuggestions{
		FocusAreas: focusAreas,
		NextSteps:  nextSteps,
		Resources:  resources,
		Timeline:   "2-4 weeks for immediate improvements, 2-3 months for advanced skills",
	}
}

// HeuristicNarrative renders the deterministic analysis as markdown so the
// same field extraction runs regardless of which engine produced the text.
func HeuristicNarrative(s *aggregation.ActivitySummary, periodDays int) string {
	var b strings.Builder

	b.WriteString("## Coding Pattern Analysis\n\n")
	fmt.Fprintf(&b,
		"Reviewed %d events over %d days: %d runs and %d submits across %d problems, most often in %s.\n\n",
		s.TotalEvents, periodDays, s.TotalRuns, s.TotalSubmits, s.ProblemCount(), s.MostUsedLanguage(),
	)

	b.WriteString("**Problem-Solving Style**\n")
	b.WriteString(ProblemSolvingStyle(s))
	b.WriteString("\n\n**Strengths**\n")
	b.WriteString(StrengthsText(s))
	b.WriteString("\n\n**Areas for Improvement**\n")
	b.WriteString(WeaknessesText(s, periodDays))
	b.WriteString("\n\n**Recommendations**\n")
	for _, area := range Suggestions(s).FocusAreas {
		fmt.Fprintf(&b, "- %s\n", area)
	}

	return b.String()
}
