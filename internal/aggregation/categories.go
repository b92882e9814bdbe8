package aggregation

import "strings"

// categoryRule pairs a category label with the title keywords that select it.
// Rules are checked in order and the first match wins, so a title mentioning
// both trees and graphs categorizes as Trees.
type categoryRule struct {
	name     string
	keywords []string
}

var categoryRules = []categoryRule{
	{name: "Arrays", keywords: []string{"array", "list"}},
	{name: "Strings", keywords: []string{"string"}},
	{name: "Trees", keywords: []string{"tree", "binary"}},
	{name: "Graphs", keywords: []string{"graph", "bfs", "dfs"}},
	{name: "Dynamic Programming", keywords: []string{"dynamic", "dp"}},
	{name: "Sorting", keywords: []string{"sort"}},
	{name: "Hash Tables", keywords: []string{"hash", "map"}},
}

const categoryOther = "Other"

// CategorizeTitle maps a problem title to its practice category.
func CategorizeTitle(title string) string {
	lowered := strings.ToLower(title)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.name
			}
		}
	}
	return categoryOther
}

// OrderedCategoryNames returns the categories present in the histogram,
// ordered by the fixed rule order rather than map order.
func OrderedCategoryNames(counts map[string]int) []string {
	ordered := make([]string, 0, len(counts))
	for _, rule := range categoryRules {
		if counts[rule.name] > 0 {
			ordered = append(ordered, rule.name)
		}
	}
	if counts[categoryOther] > 0 {
		ordered = append(ordered, categoryOther)
	}
	return ordered
}
