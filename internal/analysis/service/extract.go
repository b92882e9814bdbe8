package service

import (
	"regexp"
	"strconv"
	"strings"
)

// Field extraction over free-form narratives is best effort. Every function
// reports whether it found anything so the caller can backfill from the
// heuristic generator.

var scoreTokenRe = regexp.MustCompile(`\b([1-5](?:\.\d)?)\b`)

var headingTrimRe = regexp.MustCompile(`^#{1,6}\s*`)

func extractScore(narrative, label string) (float64, bool) {
	for _, line := range strings.Split(narrative, "\n") {
		if !strings.Contains(strings.ToLower(line), label) {
			continue
		}
		match := scoreTokenRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		return value, true
	}
	return 0, false
}

// ExtractRating pulls the approach rating from a "rating" line carrying a
// numeric token in [1, 5].
func ExtractRating(narrative string) (float64, bool) {
	return extractScore(narrative, "rating")
}

// ExtractQualityScore pulls the code quality score from a "quality" line.
func ExtractQualityScore(narrative string) (float64, bool) {
	return extractScore(narrative, "quality")
}

// ExtractSection returns the prose under the first heading containing any of
// the given titles, up to the next heading.
func ExtractSection(narrative string, titles ...string) (string, bool) {
	parts, ok := sectionLines(narrative, titles)
	if !ok {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// ExtractSectionBlock is ExtractSection with line structure preserved, for
// sections whose items are bullet lists.
func ExtractSectionBlock(narrative string, titles ...string) (string, bool) {
	parts, ok := sectionLines(narrative, titles)
	if !ok {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

func sectionLines(narrative string, titles []string) ([]string, bool) {
	lines := strings.Split(narrative, "\n")

	start := -1
	for i, line := range lines {
		for _, title := range titles {
			if strings.Contains(line, title) {
				start = i
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	var parts []string
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			break
		}
		if trimmed == "" {
			if len(parts) > 0 {
				break
			}
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return nil, false
	}
	return parts, true
}

// ExtractBullets returns the bullet items of a section body.
func ExtractBullets(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "•") {
			item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*• \t"))
			if item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "#") ||
		(strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**"))
}

const (
	summaryEmptyFallback   = "Analysis completed with basic heuristic evaluation."
	summaryMissingFallback = "Comprehensive coding pattern analysis completed based on your recent activity."
)

// ExtractSummary returns the first substantial non-heading paragraph of the
// narrative, truncated to maxLen characters.
func ExtractSummary(narrative string, maxLen int) string {
	if strings.TrimSpace(narrative) == "" {
		return summaryEmptyFallback
	}

	for _, paragraph := range strings.Split(narrative, "\n\n") {
		if len(paragraph) <= 50 || strings.HasPrefix(paragraph, "#") {
			continue
		}
		clean := strings.ReplaceAll(paragraph, "**", "")
		clean = headingTrimRe.ReplaceAllString(clean, "")
		clean = strings.TrimSpace(clean)
		if len(clean) > maxLen {
			return clean[:maxLen-3] + "..."
		}
		return clean
	}
	return summaryMissingFallback
}
