package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/solvetrace/solvetrace/internal/cache"
	"github.com/solvetrace/solvetrace/internal/clock"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"github.com/solvetrace/solvetrace/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Fakes --

type fakeSnapshotCache struct {
	saved     []sessiondomain.SessionSnapshot
	snapshots map[string]sessiondomain.SessionSnapshot
	saveErr   error
	getErr    error
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{snapshots: map[string]sessiondomain.SessionSnapshot{}}
}

func (f *fakeSnapshotCache) SaveSnapshot(_ context.Context, snapshot sessiondomain.SessionSnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, snapshot)
	f.snapshots[snapshot.UserID+"|"+snapshot.ProblemID] = snapshot
	return nil
}

func (f *fakeSnapshotCache) GetSnapshot(_ context.Context, userID, problemID string) (*sessiondomain.SessionSnapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	snapshot, ok := f.snapshots[userID+"|"+problemID]
	if !ok {
		return nil, cache.ErrSnapshotNotFound
	}
	return &snapshot, nil
}

type fakePublisher struct {
	published []*sessiondomain.ActivityEvent
	err       error
}

func (f *fakePublisher) PublishActivity(_ context.Context, event *sessiondomain.ActivityEvent) (string, error) {
	if f.err != nil {
		return "session.progress", f.err
	}
	f.published = append(f.published, event)
	return "session.progress", nil
}

func newTestService(t *testing.T, name string) (*Service, *fakeSnapshotCache, *fakePublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sessiondomain.ActivityEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	snapshotCache := newFakeSnapshotCache()
	publisher := &fakePublisher{}

	svc := &Service{
		db:         db,
		log:        zap.NewNop(),
		genID:      node,
		clock:      clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		cache:      snapshotCache,
		publisher:  publisher,
		statsCache: cache.NewTTLCache[string, *sessiondomain.UserStats](),
	}
	return svc, snapshotCache, publisher
}

// -- Tests --

func TestIngestPersistsAndNotifies(t *testing.T) {
	svc, snapshotCache, publisher := newTestService(t, "ingest_ok")

	event, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		UserID:       "user-1",
		EventType:    "submit",
		Platform:     "leetcode",
		Language:     "go",
		ProblemURL:   "https://leetcode.com/problems/two-sum/",
		ProblemTitle: "Two Sum",
		Code:         "func twoSum() {}",
	})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.NotZero(t, event.ID)
	assert.Equal(t, sessiondomain.EventTypeCodeSubmit, event.EventType)
	assert.Equal(t, "user-1_two-sum_1709294400000", event.SessionID)

	var count int64
	require.NoError(t, svc.db.Model(&sessiondomain.ActivityEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.Len(t, snapshotCache.saved, 1)
	assert.Equal(t, "two-sum", snapshotCache.saved[0].ProblemID)
	assert.Equal(t, event.ID.String(), snapshotCache.saved[0].EventID)
	assert.Equal(t, sessiondomain.EventTypeCodeSubmit, snapshotCache.saved[0].EventType)
	assert.True(t, snapshotCache.saved[0].HasCode)
	assert.Equal(t, len("func twoSum() {}"), snapshotCache.saved[0].CodeLength)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, event.SessionID, publisher.published[0].SessionID)
}

func TestIngestSurvivesCacheAndBrokerOutage(t *testing.T) {
	svc, snapshotCache, publisher := newTestService(t, "ingest_outage")
	snapshotCache.saveErr = errors.New("redis down")
	publisher.err = errors.New("nats down")

	event, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		UserID:     "user-1",
		EventType:  "run",
		ProblemURL: "https://leetcode.com/problems/two-sum/",
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	var count int64
	require.NoError(t, svc.db.Model(&sessiondomain.ActivityEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIngestAnonymousUser(t *testing.T) {
	svc, _, _ := newTestService(t, "ingest_anonymous")

	event, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		EventType:  "run",
		ProblemURL: "https://leetcode.com/problems/two-sum/",
	})
	require.NoError(t, err)
	assert.Equal(t, AnonymousUserID, event.UserID)
	assert.True(t, strings.HasPrefix(event.SessionID, "anonymous_two-sum_"))
}

func TestIngestMissingEventType(t *testing.T) {
	svc, _, _ := newTestService(t, "ingest_missing_event_type")

	event, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, sessiondomain.EventTypeCodeActivity, event.EventType)
}

func TestListUserEventsPagination(t *testing.T) {
	svc, _, _ := newTestService(t, "list_pagination")
	seedEvents(t, svc, "user-1", 5)

	resp, err := svc.ListUserEvents(context.Background(), sessiondomain.ListEventsRequest{
		UserID:   "user-1",
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Events, 2)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextPageToken)

	resp2, err := svc.ListUserEvents(context.Background(), sessiondomain.ListEventsRequest{
		UserID:    "user-1",
		PageSize:  2,
		PageToken: resp.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, resp2.Events, 2)
	for _, event := range resp2.Events {
		assert.NotContains(t, eventIDs(resp.Events), event.ID)
	}
}

func TestListUserEventsFiltersByType(t *testing.T) {
	svc, _, _ := newTestService(t, "list_filter")
	seedEvents(t, svc, "user-1", 4)

	resp, err := svc.ListUserEvents(context.Background(), sessiondomain.ListEventsRequest{
		UserID:    "user-1",
		EventType: sessiondomain.EventTypeCodeSubmit,
		PageSize:  50,
	})
	require.NoError(t, err)
	for _, event := range resp.Events {
		assert.Equal(t, sessiondomain.EventTypeCodeSubmit, event.EventType)
	}
}

func TestGetEvent(t *testing.T) {
	svc, _, _ := newTestService(t, "get_event")

	created, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		UserID:     "user-1",
		EventType:  "submit",
		ProblemURL: "https://leetcode.com/problems/two-sum/",
		Code:       "func solve() {}",
	})
	require.NoError(t, err)

	event, err := svc.GetEvent(context.Background(), created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "func solve() {}", event.Code)

	_, err = svc.GetEvent(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, sessiondomain.ErrInvalidEventID)

	_, err = svc.GetEvent(context.Background(), "99999999999999")
	assert.ErrorIs(t, err, sessiondomain.ErrEventNotFound)
}

func TestGetUserStats(t *testing.T) {
	svc, _, _ := newTestService(t, "user_stats")

	ingest := func(eventType, url, language string) {
		_, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
			UserID:     "user-1",
			EventType:  eventType,
			ProblemURL: url,
			Language:   language,
			Platform:   "leetcode",
		})
		require.NoError(t, err)
	}

	ingest("run", "https://leetcode.com/problems/two-sum/", "go")
	ingest("run", "https://leetcode.com/problems/two-sum/", "go")
	ingest("submit", "https://leetcode.com/problems/two-sum/", "go")
	ingest("submit", "https://leetcode.com/problems/valid-parentheses/", "python")

	stats, err := svc.GetUserStats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalEvents)
	assert.Equal(t, int64(2), stats.RunCount)
	assert.Equal(t, int64(2), stats.SubmitCount)
	assert.Equal(t, int64(2), stats.ProblemsAttempted)
	assert.Equal(t, int64(3), stats.Languages["go"])
	assert.Equal(t, int64(1), stats.Languages["python"])
	assert.Equal(t, int64(4), stats.Platforms["leetcode"])
	require.NotNil(t, stats.LastActivityAt)
}

func TestGetActiveSessionFallsBackToStore(t *testing.T) {
	svc, snapshotCache, _ := newTestService(t, "active_session")

	event, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		UserID:     "user-1",
		EventType:  "run",
		ProblemURL: "https://leetcode.com/problems/two-sum/",
		Language:   "go",
	})
	require.NoError(t, err)

	// Simulate an expired cache entry.
	snapshotCache.snapshots = map[string]sessiondomain.SessionSnapshot{}

	snapshot, err := svc.GetActiveSession(context.Background(), "user-1", "two-sum")
	require.NoError(t, err)
	assert.Equal(t, "two-sum", snapshot.ProblemID)
	assert.Equal(t, "go", snapshot.Language)
	assert.Equal(t, event.ID.String(), snapshot.EventID)
	assert.Equal(t, sessiondomain.EventTypeCodeRun, snapshot.EventType)

	_, err = svc.GetActiveSession(context.Background(), "user-1", "missing-problem")
	assert.ErrorIs(t, err, sessiondomain.ErrSessionNotFound)
}

func TestListProblemEventsBySlug(t *testing.T) {
	svc, _, _ := newTestService(t, "problem_events")

	_, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
		UserID:       "user-1",
		EventType:    "submit",
		ProblemURL:   "https://leetcode.com/problems/two-sum/",
		ProblemTitle: "Two Sum",
	})
	require.NoError(t, err)

	resp, err := svc.ListProblemEvents(context.Background(), "Two Sum", pagination.Pagination{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "two-sum", resp.Events[0].ProblemID)

	_, err = svc.ListProblemEvents(context.Background(), "   ", pagination.Pagination{PageSize: 10})
	assert.ErrorIs(t, err, sessiondomain.ErrInvalidProblem)
}

// -- helpers --

func seedEvents(t *testing.T, svc *Service, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		eventType := "run"
		if i%2 == 0 {
			eventType = "submit"
		}
		_, err := svc.Ingest(context.Background(), sessiondomain.RawEventPayload{
			UserID:     userID,
			EventType:  eventType,
			ProblemURL: fmt.Sprintf("https://leetcode.com/problems/problem-%d/", i),
		})
		require.NoError(t, err)
	}
}

func eventIDs(events []sessiondomain.ActivityEvent) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids
}
