// Package domain contains persistence models for raw coding activity ingestion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Normalized event types stored on every activity row.
const (
	EventTypeCodeRun         = "CODE_RUN"
	EventTypeCodeSubmit      = "CODE_SUBMIT"
	EventTypeCodeActivity    = "CODE_ACTIVITY"
	EventTypeSessionStarted  = "SESSION_STARTED"
	EventTypeSessionProgress = "SESSION_PROGRESS"
	EventTypeSessionEnded    = "SESSION_ENDED"
)

// UnknownProblemID marks events whose problem could not be derived from the URL.
const UnknownProblemID = "unknown-problem"

// ActivityEvent stores a single unit of coding activity.
type ActivityEvent struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	SessionID        string            `gorm:"type:text;not null;index"`
	UserID           string            `gorm:"type:text;not null;index:idx_session_events_user_created"`
	EventType        string            `gorm:"type:text;not null"`
	Platform         string            `gorm:"type:text"`
	Language         string            `gorm:"type:text"`
	ProblemID        string            `gorm:"type:text;not null;index"`
	ProblemTitle     string            `gorm:"type:text"`
	ProblemURL       string            `gorm:"type:text"`
	Code             string            `gorm:"type:text"`
	ExtensionVersion string            `gorm:"type:text"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`
	OccurredAt       time.Time         `gorm:"not null"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_session_events_user_created"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ActivityEvent) TableName() string { return "coding_session_events" }
