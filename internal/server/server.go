package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	analysisdomain "github.com/solvetrace/solvetrace/internal/analysis/domain"
	"github.com/solvetrace/solvetrace/internal/config"
	"github.com/solvetrace/solvetrace/internal/observability"
	"github.com/solvetrace/solvetrace/internal/observability/logger"
	obsmetrics "github.com/solvetrace/solvetrace/internal/observability/metrics"
	obstracing "github.com/solvetrace/solvetrace/internal/observability/tracing"
	"github.com/solvetrace/solvetrace/internal/ratelimit"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

// NewEngine builds the gin engine with the shared middleware chain. Order
// matters: recovery first, then logging and tracing so every handler runs
// with request-scoped context, then error rendering last.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB

	sessionSvc    sessiondomain.Service
	analysisSvc   analysisdomain.Service
	obsMetrics    *obsmetrics.Metrics
	ingestLimiter *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	SessionSvc  sessiondomain.Service
	AnalysisSvc analysisdomain.Service

	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		sessionSvc:    p.SessionSvc,
		analysisSvc:   p.AnalysisSvc,
		obsMetrics:    p.ObsMetrics,
		ingestLimiter: p.IngestLimiter,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/events", s.IngestRateLimit(), s.IngestEvent)
	api.GET("/events/:id", s.GetEvent)
	api.GET("/users/:userId/events", s.ListUserEvents)
	api.GET("/users/:userId/stats", s.GetUserStats)
	api.GET("/users/:userId/sessions/:problemId", s.GetActiveSession)
	api.GET("/problems/:title/events", s.ListProblemEvents)

	api.POST("/analysis", s.AnalyzeUser)
	api.GET("/analysis/latest/:userId", s.GetLatestAnalysis)
	api.GET("/analysis/health", s.AnalysisHealth)
}

func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.Engine(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
