package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solvetrace/solvetrace/internal/observability/logger"
)

const ingestEndpoint = "events"

// IngestRateLimit throttles event ingestion per user and per endpoint.
// Redis errors fail open: ingestion keeps working when the limiter backend
// is unavailable.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ingestLimiter == nil || !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := c.GetHeader("X-User-Id")

		res, err := s.ingestLimiter.AllowEndpoint(ctx, ingestEndpoint)
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed",
				zap.String("endpoint", ingestEndpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !res.Allowed {
			s.denyRateLimited(c, userID, res.RetryAfter.Seconds(), "endpoint_limit")
			return
		}

		if userID != "" {
			res, err = s.ingestLimiter.AllowUser(ctx, userID)
			if err != nil {
				logger.FromContext(ctx).Warn("rate limit check failed",
					zap.String("user_id", userID),
					zap.Error(err),
				)
				c.Next()
				return
			}
			if !res.Allowed {
				s.denyRateLimited(c, userID, res.RetryAfter.Seconds(), "user_limit")
				return
			}
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, userID, ingestEndpoint)
		}
		c.Next()
	}
}

func (s *Server) denyRateLimited(c *gin.Context, userID string, retryAfter float64, reason string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), userID, ingestEndpoint, reason)
	}
	seconds := int(retryAfter)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", fmt.Sprintf("%d", seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
		Error: errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		},
	})
}
