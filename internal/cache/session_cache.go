// Package cache stores hot-path session metadata in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/solvetrace/solvetrace/internal/config"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

// ErrSnapshotNotFound is returned when no snapshot exists for the session key.
var ErrSnapshotNotFound = errors.New("snapshot_not_found")

// SessionMetadataCache keeps the most recent session snapshot per user and problem.
// Writes are best effort: ingestion must not depend on Redis availability.
type SessionMetadataCache interface {
	SaveSnapshot(ctx context.Context, snapshot sessiondomain.SessionSnapshot) error
	GetSnapshot(ctx context.Context, userID, problemID string) (*sessiondomain.SessionSnapshot, error)
}

type redisSessionCache struct {
	client       redis.UniversalClient
	ttl          time.Duration
	writeTimeout time.Duration
}

// NewSessionMetadataCache builds the Redis-backed snapshot cache.
func NewSessionMetadataCache(client redis.UniversalClient, cfg config.RedisConfig) SessionMetadataCache {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 500 * time.Millisecond
	}
	return &redisSessionCache{
		client:       client,
		ttl:          ttl,
		writeTimeout: writeTimeout,
	}
}

func (c *redisSessionCache) SaveSnapshot(ctx context.Context, snapshot sessiondomain.SessionSnapshot) error {
	if c.client == nil {
		return errors.New("missing_redis_client")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	return c.client.Set(ctx, snapshotKey(snapshot.UserID, snapshot.ProblemID), payload, c.ttl).Err()
}

func (c *redisSessionCache) GetSnapshot(ctx context.Context, userID, problemID string) (*sessiondomain.SessionSnapshot, error) {
	if c.client == nil {
		return nil, errors.New("missing_redis_client")
	}

	raw, err := c.client.Get(ctx, snapshotKey(userID, problemID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var snapshot sessiondomain.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func snapshotKey(userID, problemID string) string {
	return fmt.Sprintf("session:%s:%s", strings.TrimSpace(userID), strings.TrimSpace(problemID))
}
