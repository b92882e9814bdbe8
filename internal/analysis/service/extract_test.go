package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleNarrative = `## Developer Analysis

This developer shows a steady iterative practice rhythm with strong fundamentals across arrays and strings.

Skill Rating: 4.2/5
Code Quality Score: 3.8/5

**Strengths**
Consistent daily practice and clean naming.

**Problem-Solving Style**
Starts with a brute-force sketch, then refines toward an optimal solution.

**Areas for Improvement**
Edge cases are often handled late in the iteration cycle.

**Recommendations**
- Practice graph traversal problems
- Write tests before the first run
`

func TestExtractRating(t *testing.T) {
	rating, ok := ExtractRating(sampleNarrative)
	assert.True(t, ok)
	assert.InDelta(t, 4.2, rating, 1e-9)

	_, ok = ExtractRating("no scores here")
	assert.False(t, ok)

	_, ok = ExtractRating("rating: excellent")
	assert.False(t, ok)
}

func TestExtractQualityScore(t *testing.T) {
	score, ok := ExtractQualityScore(sampleNarrative)
	assert.True(t, ok)
	assert.InDelta(t, 3.8, score, 1e-9)

	_, ok = ExtractQualityScore("quality is 9 out of 10")
	assert.False(t, ok)
}

func TestExtractSection(t *testing.T) {
	style, ok := ExtractSection(sampleNarrative, "Problem-Solving Style")
	assert.True(t, ok)
	assert.Contains(t, style, "brute-force sketch")

	strengths, ok := ExtractSection(sampleNarrative, "Strengths", "Key Strengths")
	assert.True(t, ok)
	assert.Contains(t, strengths, "Consistent daily practice")

	_, ok = ExtractSection(sampleNarrative, "Nonexistent Section")
	assert.False(t, ok)
}

func TestExtractSectionStopsAtNextHeading(t *testing.T) {
	style, _ := ExtractSection(sampleNarrative, "Strengths")
	assert.NotContains(t, style, "brute-force")
}

func TestExtractBullets(t *testing.T) {
	block, ok := ExtractSectionBlock(sampleNarrative, "Recommendations")
	assert.True(t, ok)

	bullets := ExtractBullets(block)
	assert.Equal(t, []string{
		"Practice graph traversal problems",
		"Write tests before the first run",
	}, bullets)
}

func TestExtractSummary(t *testing.T) {
	summary := ExtractSummary(sampleNarrative, 200)
	assert.Equal(t, "This developer shows a steady iterative practice rhythm with strong fundamentals across arrays and strings.", summary)
}

func TestExtractSummaryTruncates(t *testing.T) {
	long := "## Heading\n\n" + strings.Repeat("practice makes progress ", 20)
	summary := ExtractSummary(long, 200)
	assert.Len(t, summary, 200)
	assert.True(t, strings.HasSuffix(summary, "..."))
}

func TestExtractSummaryFallbacks(t *testing.T) {
	assert.Equal(t, summaryEmptyFallback, ExtractSummary("   ", 200))
	assert.Equal(t, summaryMissingFallback, ExtractSummary("## Only\n\n#### Headings", 200))
}
