package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/solvetrace/solvetrace/internal/config"
)

const (
	keyIngestUser     = "ingest:user:%s"
	keyIngestEndpoint = "ingest:endpoint:%s"
)

// IngestLimiter throttles the event ingestion endpoint with two token
// buckets: per user and per endpoint. A nil limiter (rate limiting disabled)
// allows everything.
type IngestLimiter struct {
	enabled bool

	bucket *TokenBucket

	userRate      float64
	userBurst     int
	endpointRate  float64
	endpointBurst int
}

func NewIngestLimiter(cfg config.Config) (*IngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.IngestUserRate <= 0 || limitCfg.IngestUserBurst <= 0 {
		return nil, errors.New("ingest user rate limit must be positive")
	}
	if limitCfg.IngestEndpointRate <= 0 || limitCfg.IngestEndpointBurst <= 0 {
		return nil, errors.New("ingest endpoint rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &IngestLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		userRate:      limitCfg.IngestUserRate,
		userBurst:     limitCfg.IngestUserBurst,
		endpointRate:  limitCfg.IngestEndpointRate,
		endpointBurst: limitCfg.IngestEndpointBurst,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowUser takes a token from the caller's personal bucket.
func (l *IngestLimiter) AllowUser(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyIngestUser, strings.TrimSpace(userID))
	return l.bucket.Allow(ctx, key, l.userRate, l.userBurst)
}

// AllowEndpoint takes a token from the endpoint-wide bucket.
func (l *IngestLimiter) AllowEndpoint(ctx context.Context, endpoint string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyIngestEndpoint, strings.TrimSpace(endpoint))
	return l.bucket.Allow(ctx, key, l.endpointRate, l.endpointBurst)
}
