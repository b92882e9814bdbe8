package domain

import (
	"context"
	"errors"
	"time"

	"github.com/solvetrace/solvetrace/pkg/db/pagination"
)

// RawEventPayload is the ingest request body as emitted by the browser extension.
type RawEventPayload struct {
	UserID           string         `json:"userId"`
	SessionID        string         `json:"sessionId"`
	EventType        string         `json:"eventType"`
	Platform         string         `json:"platform"`
	Language         string         `json:"language"`
	ProblemID        string         `json:"problemId"`
	ProblemURL       string         `json:"problemUrl"`
	ProblemTitle     string         `json:"problemTitle"`
	Code             string         `json:"code"`
	ExtensionVersion string         `json:"extensionVersion"`
	Timestamp        int64          `json:"timestamp"`
	Metadata         map[string]any `json:"metadata"`
}

type ListEventsRequest struct {
	UserID    string `json:"user_id"`
	EventType string `json:"event_type"`
	PageToken string `json:"page_token"`
	PageSize  int    `json:"page_size"`
}

type ListEventsResponse struct {
	pagination.PageInfo
	Events []ActivityEvent `json:"events"`
}

// SessionSnapshot is the cached metadata for a user's most recent session on
// a problem: a copy of the latest event's non-code fields.
type SessionSnapshot struct {
	SessionID    string    `json:"session_id"`
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	UserID       string    `json:"user_id"`
	ProblemID    string    `json:"problem_id"`
	ProblemTitle string    `json:"problem_title"`
	Platform     string    `json:"platform"`
	Language     string    `json:"language"`
	HasCode      bool      `json:"has_code"`
	CodeLength   int       `json:"code_length"`
	LastEventAt  time.Time `json:"last_event_at"`
}

// UserStats summarizes a user's recorded activity.
type UserStats struct {
	UserID            string           `json:"user_id"`
	TotalEvents       int64            `json:"total_events"`
	RunCount          int64            `json:"run_count"`
	SubmitCount       int64            `json:"submit_count"`
	ProblemsAttempted int64            `json:"problems_attempted"`
	Languages         map[string]int64 `json:"languages"`
	Platforms         map[string]int64 `json:"platforms"`
	FirstActivityAt   *time.Time       `json:"first_activity_at,omitempty"`
	LastActivityAt    *time.Time       `json:"last_activity_at,omitempty"`
}

type Service interface {
	Ingest(context.Context, RawEventPayload) (*ActivityEvent, error)
	ListUserEvents(context.Context, ListEventsRequest) (ListEventsResponse, error)
	GetEvent(ctx context.Context, id string) (*ActivityEvent, error)
	GetUserStats(ctx context.Context, userID string) (*UserStats, error)
	GetActiveSession(ctx context.Context, userID, problemID string) (*SessionSnapshot, error)
	ListProblemEvents(ctx context.Context, title string, page pagination.Pagination) (ListEventsResponse, error)
}

var (
	ErrInvalidUserID   = errors.New("invalid_user_id")
	ErrInvalidPayload  = errors.New("invalid_payload")
	ErrInvalidEventID  = errors.New("invalid_event_id")
	ErrEventNotFound   = errors.New("event_not_found")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrInvalidProblem  = errors.New("invalid_problem")
)
