package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/config"
	"github.com/eddyhq/eddy/internal/models"
	"github.com/eddyhq/eddy/internal/service"
	"github.com/eddyhq/eddy/internal/service/publisher"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Settings    *service.SettingsService
	RateLimiter *service.RateLimiter
	Queue       *service.Queue
	Decisions   *service.Router
	Stats       *service.StatsService
	Worker      *service.Worker
	Sweeper     *service.Sweeper
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	settings := service.NewSettingsService(db, logger)
	limiter := service.NewRateLimiter(db, logger)
	queue := service.NewQueue(db, logger)
	decisions := service.NewRouter(db, logger, settings, queue)
	stats := service.NewStatsService(db, logger)

	registry, err := buildRegistry(&cfg.Platforms, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build publisher registry: %w", err)
	}

	workerOpts, err := workerOptions(&cfg.Worker)
	if err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}
	worker := service.NewWorker(db, logger, settings, limiter, queue, registry, workerOpts)
	sweeper := service.NewSweeper(&cfg.Sweeper, db, logger, decisions, stats)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:      cfg,
		DB:          db,
		Router:      router,
		Logger:      logger,
		Settings:    settings,
		RateLimiter: limiter,
		Queue:       queue,
		Decisions:   decisions,
		Stats:       stats,
		Worker:      worker,
		Sweeper:     sweeper,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

// buildRegistry registers a publisher for every enabled platform
func buildRegistry(cfg *config.PlatformsConfig, logger *zap.Logger) (*publisher.Registry, error) {
	registry := publisher.NewRegistry(logger)

	toPubConfig := func(pc config.PlatformConfig) publisher.Config {
		return publisher.Config{
			Enabled:     pc.Enabled,
			APIBase:     pc.APIBase,
			AccessToken: pc.AccessToken,
		}
	}

	entries := []struct {
		cfg  config.PlatformConfig
		make func(publisher.Config, *zap.Logger) publisher.Publisher
	}{
		{cfg.Instagram, func(c publisher.Config, l *zap.Logger) publisher.Publisher { return publisher.NewInstagram(c, l) }},
		{cfg.TikTok, func(c publisher.Config, l *zap.Logger) publisher.Publisher { return publisher.NewTikTok(c, l) }},
		{cfg.Twitter, func(c publisher.Config, l *zap.Logger) publisher.Publisher { return publisher.NewTwitter(c, l) }},
		{cfg.LinkedIn, func(c publisher.Config, l *zap.Logger) publisher.Publisher { return publisher.NewLinkedIn(c, l) }},
		{cfg.Facebook, func(c publisher.Config, l *zap.Logger) publisher.Publisher { return publisher.NewFacebook(c, l) }},
		{cfg.YouTube, func(c publisher.Config, l *zap.Logger) publisher.Publisher { return publisher.NewYouTube(c, l) }},
	}

	for _, entry := range entries {
		if !entry.cfg.Enabled {
			continue
		}
		if err := registry.Register(entry.make(toPubConfig(entry.cfg), logger)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func workerOptions(cfg *config.WorkerConfig) (service.WorkerOptions, error) {
	opts := service.WorkerOptions{
		WorkerID:  cfg.WorkerID,
		BatchSize: cfg.BatchSize,
		Enabled:   cfg.Enabled,
	}

	for _, d := range []struct {
		raw  string
		dest *time.Duration
	}{
		{cfg.PollInterval, &opts.PollInterval},
		{cfg.PacingDelay, &opts.PacingDelay},
		{cfg.PublishTimeout, &opts.PublishTimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return opts, err
		}
		*d.dest = parsed
	}

	return opts, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		posts := api.Group("/posts")
		{
			posts.POST("/:id/route", s.handleRoutePost)
			posts.GET("/:id/jobs", s.handleListPostJobs)
		}

		jobs := api.Group("/jobs")
		{
			jobs.POST("/:id/cancel", s.handleCancelJob)
		}

		users := api.Group("/users")
		{
			users.GET("/:id/settings", s.handleGetSettings)
		}

		api.GET("/stats", s.handleGetStats)
	}
}

type routeRequest struct {
	ForceMode models.PublishMode `json:"force_mode"`
}

func (s *Server) handleRoutePost(c *gin.Context) {
	var req routeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if req.ForceMode != "" && req.ForceMode != models.ModeScheduled && req.ForceMode != models.ModeReactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid force_mode"})
		return
	}

	decision := s.Decisions.Route(c.Request.Context(), c.Param("id"), req.ForceMode)
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleListPostJobs(c *gin.Context) {
	jobs, err := s.Queue.JobsForPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.Logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleCancelJob(c *gin.Context) {
	if err := s.Queue.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job cancelled"})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings := s.Settings.Resolve(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, settings)
}

func (s *Server) handleGetStats(c *gin.Context) {
	stats, err := s.Stats.Snapshot(c.Request.Context())
	if err != nil {
		s.Logger.Error("Failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) Start(ctx context.Context) error {
	// Start background services first
	if err := s.Worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	if err := s.Sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop background services first
	if s.Config.Worker.Enabled {
		s.Worker.Stop()
	}
	s.Sweeper.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
