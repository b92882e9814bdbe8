package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solvetrace/solvetrace/internal/aggregation"
)

const systemPrompt = "You are an expert coding mentor; give actionable coding insights."

// codeSampleLimit bounds the code excerpt per problem so large submissions
// cannot blow past the completion context window.
const codeSampleLimit = 1200

// BuildAnalysisPrompt renders the activity summary into the mentor prompt.
// The response format it requests matches what the extractor parses, so the
// two must stay in sync.
func BuildAnalysisPrompt(summary *aggregation.ActivitySummary) string {
	var b strings.Builder

	b.WriteString("Analyze this developer's recent coding practice sessions.\n\n")
	b.WriteString("## Activity Summary\n")
	fmt.Fprintf(&b, "- User ID: %s\n", summary.UserID)
	fmt.Fprintf(&b, "- Window start: %s\n", summary.WindowStart.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Total events: %d (runs: %d, submits: %d)\n",
		summary.TotalEvents, summary.TotalRuns, summary.TotalSubmits)
	fmt.Fprintf(&b, "- Distinct problems: %d\n", summary.ProblemCount())
	fmt.Fprintf(&b, "- Languages: %s\n", strings.Join(languageList(summary.Languages), ", "))
	if len(summary.Categories) > 0 {
		fmt.Fprintf(&b, "- Problem categories: %s\n", strings.Join(categoryList(summary.Categories), ", "))
	}

	b.WriteString("\n## Problems Attempted\n")
	for _, p := range summary.Problems {
		fmt.Fprintf(&b, "### %s\n", p.Title)
		fmt.Fprintf(&b, "- Attempts (runs/submits): %d/%d\n", p.TotalRuns, p.TotalSubmits)
		fmt.Fprintf(&b, "- Languages: %s\n", strings.Join(p.Languages, ", "))
		for i, sample := range p.RecentCodeSamples {
			code := strings.TrimSpace(sample)
			if code == "" {
				continue
			}
			if len(code) > codeSampleLimit {
				code = code[:codeSampleLimit]
			}
			fmt.Fprintf(&b, "- Code sample %d of %d:\n```\n%s\n```\n", i+1, len(p.RecentCodeSamples), code)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Instructions\n")
	b.WriteString("Respond in markdown with exactly these sections:\n")
	b.WriteString("1. A line `Skill Rating: X/5` where X is a number between 1 and 5.\n")
	b.WriteString("2. A line `Code Quality Score: X/5` where X is a number between 1 and 5.\n")
	b.WriteString("3. A `Strengths` section listing observed strengths.\n")
	b.WriteString("4. A `Problem-Solving Style` section describing how the developer approaches problems.\n")
	b.WriteString("5. An `Areas for Improvement` section with specific gaps.\n")
	b.WriteString("6. A `Recommendations` section with concrete next steps.\n")
	b.WriteString("Tie every observation to evidence in the attempts or code above.\n")

	return b.String()
}

func languageList(langs map[string]int) []string {
	out := make([]string, 0, len(langs))
	for lang := range langs {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

func categoryList(categories map[string]int) []string {
	names := aggregation.OrderedCategoryNames(categories)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("%s (%d events)", name, categories[name]))
	}
	return out
}
