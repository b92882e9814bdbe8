package service

import (
	"fmt"
	"strings"
	"time"

	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"gorm.io/datatypes"
)

const problemPathMarker = "/problems/"

// AnonymousUserID stands in when the extension sends no user identity.
const AnonymousUserID = "anonymous"

// MapEventType resolves the raw extension event type to its stored form.
// Canonical types pass through unchanged; action codes map run/submit;
// anything else is kept as generic activity rather than rejected.
func MapEventType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case sessiondomain.EventTypeCodeRun,
		sessiondomain.EventTypeCodeSubmit,
		sessiondomain.EventTypeCodeActivity,
		sessiondomain.EventTypeSessionStarted,
		sessiondomain.EventTypeSessionProgress,
		sessiondomain.EventTypeSessionEnded:
		return strings.ToUpper(strings.TrimSpace(raw))
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "run":
		return sessiondomain.EventTypeCodeRun
	case "submit":
		return sessiondomain.EventTypeCodeSubmit
	default:
		return sessiondomain.EventTypeCodeActivity
	}
}

// ExtractProblemID derives a problem identifier from the problem page URL.
// The segment after "/problems/" is kept up to the next path separator and
// reduced to [A-Za-z0-9-]. URLs without a usable segment map to the
// unknown-problem sentinel so ingestion never fails on a malformed URL.
func ExtractProblemID(problemURL string) string {
	url := strings.TrimSpace(problemURL)
	idx := strings.Index(url, problemPathMarker)
	if idx < 0 {
		return sessiondomain.UnknownProblemID
	}

	segment := url[idx+len(problemPathMarker):]
	if cut := strings.IndexAny(segment, "/?#"); cut >= 0 {
		segment = segment[:cut]
	}

	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return sessiondomain.UnknownProblemID
	}
	return b.String()
}

// BuildSessionID composes the deterministic session identity for a user's
// work on a problem at a point in time.
func BuildSessionID(userID, problemID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", userID, problemID, at.UnixMilli())
}

// Normalize maps the raw payload onto a persistable activity event. The
// caller assigns the row ID.
func Normalize(req sessiondomain.RawEventPayload, now time.Time) sessiondomain.ActivityEvent {
	problemID := strings.TrimSpace(req.ProblemID)
	if problemID == "" {
		problemID = ExtractProblemID(req.ProblemURL)
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = AnonymousUserID
	}

	occurredAt := now
	if req.Timestamp > 0 {
		occurredAt = time.UnixMilli(req.Timestamp).UTC()
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = BuildSessionID(userID, problemID, now)
	}

	event := sessiondomain.ActivityEvent{
		SessionID:        sessionID,
		UserID:           userID,
		EventType:        MapEventType(req.EventType),
		Platform:         strings.TrimSpace(req.Platform),
		Language:         strings.TrimSpace(req.Language),
		ProblemID:        problemID,
		ProblemTitle:     strings.TrimSpace(req.ProblemTitle),
		ProblemURL:       strings.TrimSpace(req.ProblemURL),
		Code:             req.Code,
		ExtensionVersion: strings.TrimSpace(req.ExtensionVersion),
		OccurredAt:       occurredAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Metadata != nil {
		// The source snapshot lives only in the code column.
		metadata := make(datatypes.JSONMap, len(req.Metadata))
		for k, v := range req.Metadata {
			if k == "code" {
				continue
			}
			metadata[k] = v
		}
		event.Metadata = metadata
	}
	return event
}
