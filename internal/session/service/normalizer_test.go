package service

import (
	"testing"
	"time"

	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapEventType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"run", sessiondomain.EventTypeCodeRun},
		{"RUN", sessiondomain.EventTypeCodeRun},
		{" run ", sessiondomain.EventTypeCodeRun},
		{"submit", sessiondomain.EventTypeCodeSubmit},
		{"Submit", sessiondomain.EventTypeCodeSubmit},
		{"navigate", sessiondomain.EventTypeCodeActivity},
		{"keystroke", sessiondomain.EventTypeCodeActivity},
		{"", sessiondomain.EventTypeCodeActivity},
		{"CODE_SUBMIT", sessiondomain.EventTypeCodeSubmit},
		{"SESSION_STARTED", sessiondomain.EventTypeSessionStarted},
		{"session_ended", sessiondomain.EventTypeSessionEnded},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, MapEventType(tc.raw), "raw=%q", tc.raw)
	}
}

func TestExtractProblemID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "leetcode problem page",
			url:  "https://leetcode.com/problems/two-sum/",
			want: "two-sum",
		},
		{
			name: "problem with description suffix",
			url:  "https://leetcode.com/problems/valid-parentheses/description/",
			want: "valid-parentheses",
		},
		{
			name: "query string ignored",
			url:  "https://leetcode.com/problems/merge-k-sorted-lists?tab=solutions",
			want: "merge-k-sorted-lists",
		},
		{
			name: "invalid characters stripped",
			url:  "https://example.com/problems/two_sum!",
			want: "twosum",
		},
		{
			name: "no problems segment",
			url:  "https://leetcode.com/contest/weekly-400",
			want: sessiondomain.UnknownProblemID,
		},
		{
			name: "empty segment",
			url:  "https://leetcode.com/problems/",
			want: sessiondomain.UnknownProblemID,
		},
		{
			name: "empty url",
			url:  "",
			want: sessiondomain.UnknownProblemID,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractProblemID(tc.url))
		})
	}
}

func TestBuildSessionID(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := BuildSessionID("user-1", "two-sum", at)
	assert.Equal(t, "user-1_two-sum_1709294400000", got)
}

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event := Normalize(sessiondomain.RawEventPayload{
		UserID:       " user-1 ",
		EventType:    "submit",
		Platform:     "leetcode",
		Language:     "go",
		ProblemURL:   "https://leetcode.com/problems/two-sum/",
		ProblemTitle: "Two Sum",
		Code:         "func twoSum() {}",
		Timestamp:    now.Add(-time.Minute).UnixMilli(),
		Metadata:     map[string]any{"tab": "editor", "code": "func twoSum() {}"},
	}, now)

	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, sessiondomain.EventTypeCodeSubmit, event.EventType)
	assert.Equal(t, "two-sum", event.ProblemID)
	assert.Equal(t, "user-1_two-sum_1709294400000", event.SessionID)
	assert.Equal(t, now.Add(-time.Minute), event.OccurredAt)
	assert.Equal(t, "func twoSum() {}", event.Code)
	assert.Equal(t, "editor", event.Metadata["tab"])
	assert.NotContains(t, event.Metadata, "code")
}

func TestNormalizeKeepsSuppliedProblemID(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event := Normalize(sessiondomain.RawEventPayload{
		UserID:     "user-1",
		EventType:  "run",
		ProblemID:  "custom-id",
		ProblemURL: "https://leetcode.com/problems/two-sum/",
	}, now)

	assert.Equal(t, "custom-id", event.ProblemID)
}

func TestNormalizeKeepsSuppliedSessionID(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event := Normalize(sessiondomain.RawEventPayload{
		UserID:    "user-1",
		SessionID: "user-1_two-sum_1700000000000",
		EventType: "run",
	}, now)

	assert.Equal(t, "user-1_two-sum_1700000000000", event.SessionID)
}

func TestNormalizeBlankUserGetsPlaceholder(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event := Normalize(sessiondomain.RawEventPayload{
		UserID:    "   ",
		EventType: "submit",
	}, now)

	assert.Equal(t, AnonymousUserID, event.UserID)
	assert.Equal(t, "anonymous_unknown-problem_1709294400000", event.SessionID)
}

func TestNormalizeZeroTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event := Normalize(sessiondomain.RawEventPayload{
		UserID:    "user-1",
		EventType: "run",
	}, now)

	assert.Equal(t, now, event.OccurredAt)
	assert.Equal(t, sessiondomain.UnknownProblemID, event.ProblemID)
}
