// Package aggregation condenses raw activity events into the per-problem
// summaries consumed by the analysis pipeline.
package aggregation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoActivity is returned when the user has no run or submit events in the window.
var ErrNoActivity = errors.New("no_activity_in_window")

// ProblemAggregate summarizes a user's work on a single problem title.
// TotalRuns and TotalSubmits intentionally carry the window-wide totals on
// every entry, matching the aggregate shape downstream prompts were tuned on.
type ProblemAggregate struct {
	Title             string   `json:"title"`
	TotalRuns         int      `json:"total_runs"`
	TotalSubmits      int      `json:"total_submits"`
	Languages         []string `json:"languages"`
	RecentCodeSamples []string `json:"recent_code_samples,omitempty"`
}

// ActivitySummary is the aggregated window handed to the analysis engines.
// Categories maps each practice category to the number of run/submit events
// whose problem title classified into it.
type ActivitySummary struct {
	UserID       string             `json:"user_id"`
	WindowStart  time.Time          `json:"window_start"`
	TotalEvents  int                `json:"total_events"`
	TotalRuns    int                `json:"total_runs"`
	TotalSubmits int                `json:"total_submits"`
	Problems     []ProblemAggregate `json:"problems"`
	Languages    map[string]int     `json:"languages"`
	Categories   map[string]int     `json:"categories"`
}

// ProblemCount returns the number of distinct problem titles in the window.
func (s *ActivitySummary) ProblemCount() int {
	return len(s.Problems)
}

// LanguageCount returns the number of distinct languages in the window.
func (s *ActivitySummary) LanguageCount() int {
	return len(s.Languages)
}

// unknownLanguage is the extension's placeholder when language detection
// failed. It never counts as a real language.
const unknownLanguage = "unknown"

// knownLanguage trims the recorded language and drops the blank and
// "unknown" placeholders.
func knownLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == unknownLanguage {
		return ""
	}
	return lang
}

// MostUsedLanguage returns the language with the highest event count, or
// "unknown" when the window has no language data. Ties resolve to the
// lexicographically smallest language so the result is stable.
func (s *ActivitySummary) MostUsedLanguage() string {
	names := make([]string, 0, len(s.Languages))
	for name := range s.Languages {
		names = append(names, name)
	}
	sort.Strings(names)

	best := unknownLanguage
	bestCount := 0
	for _, name := range names {
		if s.Languages[name] > bestCount {
			best = name
			bestCount = s.Languages[name]
		}
	}
	return best
}

// Engine aggregates stored activity events.
type Engine struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewEngine(db *gorm.DB, log *zap.Logger) *Engine {
	return &Engine{
		db:  db,
		log: log.Named("aggregation.engine"),
	}
}

// Aggregate builds the activity summary for a user since the window start.
// Only run and submit events count toward analysis.
func (e *Engine) Aggregate(ctx context.Context, userID string, since time.Time) (*ActivitySummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, sessiondomain.ErrInvalidUserID
	}

	var events []sessiondomain.ActivityEvent
	err := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("event_type IN ?", []string{sessiondomain.EventTypeCodeRun, sessiondomain.EventTypeCodeSubmit}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoActivity
	}

	summary := &ActivitySummary{
		UserID:      userID,
		WindowStart: since,
		TotalEvents: len(events),
		Languages:   map[string]int{},
		Categories:  map[string]int{},
	}

	type problemAccumulator struct {
		title       string
		languages   map[string]struct{}
		codeSamples []string
	}
	problems := map[string]*problemAccumulator{}
	titleOrder := make([]string, 0)

	for _, event := range events {
		switch event.EventType {
		case sessiondomain.EventTypeCodeRun:
			summary.TotalRuns++
		case sessiondomain.EventTypeCodeSubmit:
			summary.TotalSubmits++
		}

		if lang := knownLanguage(event.Language); lang != "" {
			summary.Languages[lang]++
		}

		title := strings.TrimSpace(event.ProblemTitle)
		if title == "" {
			title = event.ProblemID
		}
		summary.Categories[CategorizeTitle(title)]++

		acc, ok := problems[title]
		if !ok {
			acc = &problemAccumulator{title: title, languages: map[string]struct{}{}}
			problems[title] = acc
			titleOrder = append(titleOrder, title)
		}
		if lang := knownLanguage(event.Language); lang != "" {
			acc.languages[lang] = struct{}{}
		}
		if event.Code != "" {
			acc.codeSamples = append(acc.codeSamples, event.Code)
		}
	}

	for _, title := range titleOrder {
		acc := problems[title]
		languages := make([]string, 0, len(acc.languages))
		for lang := range acc.languages {
			languages = append(languages, lang)
		}
		sort.Strings(languages)
		summary.Problems = append(summary.Problems, ProblemAggregate{
			Title:             acc.title,
			TotalRuns:         summary.TotalRuns,
			TotalSubmits:      summary.TotalSubmits,
			Languages:         languages,
			RecentCodeSamples: acc.codeSamples,
		})
	}

	return summary, nil
}
