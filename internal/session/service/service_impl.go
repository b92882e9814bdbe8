package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/solvetrace/solvetrace/internal/cache"
	"github.com/solvetrace/solvetrace/internal/clock"
	"github.com/solvetrace/solvetrace/internal/cloudmetrics"
	"github.com/solvetrace/solvetrace/internal/events"
	obsmetrics "github.com/solvetrace/solvetrace/internal/observability/metrics"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"github.com/solvetrace/solvetrace/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const statsCacheTTL = 30 * time.Second

// ActivityPublisher forwards accepted events to the session broker.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, event *sessiondomain.ActivityEvent) (string, error)
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cache      cache.SessionMetadataCache `optional:"true"`
	Publisher  *events.Publisher          `optional:"true"`
	Metrics    *cloudmetrics.CloudMetrics `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	cache      cache.SessionMetadataCache
	publisher  ActivityPublisher
	metrics    *cloudmetrics.CloudMetrics
	obsMetrics *obsmetrics.Metrics
	statsCache cache.Cache[string, *sessiondomain.UserStats]
}

func NewService(p ServiceParam) sessiondomain.Service {
	svc := &Service{
		db:  p.DB,
		log: p.Log.Named("session.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		cache:      p.Cache,
		metrics:    p.Metrics,
		obsMetrics: p.ObsMetrics,
		statsCache: cache.NewTTLCache[string, *sessiondomain.UserStats](),
	}
	if p.Publisher != nil {
		svc.publisher = p.Publisher
	}
	return svc
}

// Ingest normalizes and durably stores an activity event. Cache and broker
// writes happen after the store write and are best effort: their failures are
// logged and counted but never surface to the extension. Events without a
// user identity are accepted under the anonymous placeholder.
func (s *Service) Ingest(ctx context.Context, req sessiondomain.RawEventPayload) (*sessiondomain.ActivityEvent, error) {
	now := s.clock.Now().UTC()
	event := Normalize(req, now)
	event.ID = s.genID.Generate()

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}

	s.writeSessionSnapshot(ctx, &event)
	s.publishActivity(ctx, &event)

	if s.metrics != nil {
		go s.metrics.IncEventIngested(event.EventType, event.Platform)
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordEventIngested(ctx, event.EventType, event.Platform)
	}
	s.statsCache.Delete(event.UserID)

	return &event, nil
}

func (s *Service) writeSessionSnapshot(ctx context.Context, event *sessiondomain.ActivityEvent) {
	if s.cache == nil {
		return
	}
	snapshot := sessiondomain.SessionSnapshot{
		SessionID:    event.SessionID,
		EventID:      event.ID.String(),
		EventType:    event.EventType,
		UserID:       event.UserID,
		ProblemID:    event.ProblemID,
		ProblemTitle: event.ProblemTitle,
		Platform:     event.Platform,
		Language:     event.Language,
		HasCode:      event.Code != "",
		CodeLength:   len(event.Code),
		LastEventAt:  event.OccurredAt,
	}
	if err := s.cache.SaveSnapshot(ctx, snapshot); err != nil {
		s.log.Warn("session snapshot write failed",
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordCacheFailure(ctx, "snapshot_write")
		}
	}
}

func (s *Service) publishActivity(ctx context.Context, event *sessiondomain.ActivityEvent) {
	if s.publisher == nil {
		return
	}
	topic, err := s.publisher.PublishActivity(ctx, event)
	if err != nil {
		s.log.Warn("event publish failed",
			zap.String("session_id", event.SessionID),
			zap.String("topic", topic),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordPublishFailure(ctx, topic)
		}
		return
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordPublish(ctx, topic)
	}
}

func (s *Service) ListUserEvents(ctx context.Context, req sessiondomain.ListEventsRequest) (sessiondomain.ListEventsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return sessiondomain.ListEventsResponse{}, sessiondomain.ErrInvalidUserID
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if eventType := strings.TrimSpace(req.EventType); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	return s.listEvents(query, req.PageToken, req.PageSize)
}

func (s *Service) ListProblemEvents(ctx context.Context, title string, page pagination.Pagination) (sessiondomain.ListEventsResponse, error) {
	problemID := slug.Make(strings.TrimSpace(title))
	if problemID == "" {
		return sessiondomain.ListEventsResponse{}, sessiondomain.ErrInvalidProblem
	}

	query := s.db.WithContext(ctx).Where("problem_id = ?", problemID)
	return s.listEvents(query, page.PageToken, page.PageSize)
}

func (s *Service) listEvents(query *gorm.DB, pageToken string, pageSize int) (sessiondomain.ListEventsResponse, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	if pageToken != "" {
		cursor, err := pagination.DecodeCursor(pageToken)
		if err != nil {
			return sessiondomain.ListEventsResponse{}, sessiondomain.ErrInvalidPayload
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return sessiondomain.ListEventsResponse{}, sessiondomain.ErrInvalidPayload
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return sessiondomain.ListEventsResponse{}, sessiondomain.ErrInvalidPayload
		}
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, int64(cursorID))
	}

	var items []*sessiondomain.ActivityEvent
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize + 1).
		Find(&items).Error
	if err != nil {
		return sessiondomain.ListEventsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(event *sessiondomain.ActivityEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        event.ID.String(),
			CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	eventsOut := make([]sessiondomain.ActivityEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		eventsOut = append(eventsOut, *item)
	}

	resp := sessiondomain.ListEventsResponse{Events: eventsOut}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*sessiondomain.ActivityEvent, error) {
	eventID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || eventID == 0 {
		return nil, sessiondomain.ErrInvalidEventID
	}

	var event sessiondomain.ActivityEvent
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sessiondomain.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *Service) GetUserStats(ctx context.Context, userID string) (*sessiondomain.UserStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, sessiondomain.ErrInvalidUserID
	}

	if cached, ok := s.statsCache.Get(userID); ok {
		return cached, nil
	}

	stats := &sessiondomain.UserStats{
		UserID:    userID,
		Languages: map[string]int64{},
		Platforms: map[string]int64{},
	}

	type typeCount struct {
		EventType string
		Total     int64
	}
	var typeCounts []typeCount
	err := s.db.WithContext(ctx).
		Model(&sessiondomain.ActivityEvent{}).
		Select("event_type, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("event_type").
		Scan(&typeCounts).Error
	if err != nil {
		return nil, err
	}
	for _, tc := range typeCounts {
		stats.TotalEvents += tc.Total
		switch tc.EventType {
		case sessiondomain.EventTypeCodeRun:
			stats.RunCount = tc.Total
		case sessiondomain.EventTypeCodeSubmit:
			stats.SubmitCount = tc.Total
		}
	}

	err = s.db.WithContext(ctx).
		Model(&sessiondomain.ActivityEvent{}).
		Where("user_id = ?", userID).
		Distinct("problem_id").
		Count(&stats.ProblemsAttempted).Error
	if err != nil {
		return nil, err
	}

	type labelCount struct {
		Label string
		Total int64
	}
	var languageCounts []labelCount
	err = s.db.WithContext(ctx).
		Model(&sessiondomain.ActivityEvent{}).
		Select("language AS label, COUNT(*) AS total").
		Where("user_id = ? AND language <> ''", userID).
		Group("language").
		Scan(&languageCounts).Error
	if err != nil {
		return nil, err
	}
	for _, lc := range languageCounts {
		stats.Languages[lc.Label] = lc.Total
	}

	var platformCounts []labelCount
	err = s.db.WithContext(ctx).
		Model(&sessiondomain.ActivityEvent{}).
		Select("platform AS label, COUNT(*) AS total").
		Where("user_id = ? AND platform <> ''", userID).
		Group("platform").
		Scan(&platformCounts).Error
	if err != nil {
		return nil, err
	}
	for _, pc := range platformCounts {
		stats.Platforms[pc.Label] = pc.Total
	}

	if stats.TotalEvents > 0 {
		type activitySpan struct {
			First time.Time
			Last  time.Time
		}
		var span activitySpan
		err = s.db.WithContext(ctx).
			Model(&sessiondomain.ActivityEvent{}).
			Select("MIN(occurred_at) AS first, MAX(occurred_at) AS last").
			Where("user_id = ?", userID).
			Scan(&span).Error
		if err != nil {
			return nil, err
		}
		stats.FirstActivityAt = &span.First
		stats.LastActivityAt = &span.Last
	}

	s.statsCache.Set(userID, stats, statsCacheTTL)
	return stats, nil
}

// GetActiveSession reads the cached session snapshot and falls back to the
// store when the cache entry expired or Redis is unavailable.
func (s *Service) GetActiveSession(ctx context.Context, userID, problemID string) (*sessiondomain.SessionSnapshot, error) {
	userID = strings.TrimSpace(userID)
	problemID = strings.TrimSpace(problemID)
	if userID == "" {
		return nil, sessiondomain.ErrInvalidUserID
	}
	if problemID == "" {
		return nil, sessiondomain.ErrInvalidProblem
	}

	if s.cache != nil {
		snapshot, err := s.cache.GetSnapshot(ctx, userID, problemID)
		if err == nil && snapshot != nil {
			return snapshot, nil
		}
		if err != nil && !errors.Is(err, cache.ErrSnapshotNotFound) {
			s.log.Warn("session snapshot read failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	var event sessiondomain.ActivityEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		Order("occurred_at DESC").
		Order("id DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sessiondomain.ErrSessionNotFound
		}
		return nil, err
	}

	return &sessiondomain.SessionSnapshot{
		SessionID:    event.SessionID,
		EventID:      event.ID.String(),
		EventType:    event.EventType,
		UserID:       event.UserID,
		ProblemID:    event.ProblemID,
		ProblemTitle: event.ProblemTitle,
		Platform:     event.Platform,
		Language:     event.Language,
		HasCode:      event.Code != "",
		CodeLength:   len(event.Code),
		LastEventAt:  event.OccurredAt,
	}, nil
}
