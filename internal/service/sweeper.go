package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/config"
	"github.com/eddyhq/eddy/internal/models"
)

// Sweeper periodically routes approved scheduled posts whose time has
// come, so publication does not depend on an external caller invoking
// the router again. It also refreshes the daily stats rollup.
type Sweeper struct {
	cfg    *config.SweeperConfig
	db     *gorm.DB
	logger *zap.Logger
	router *Router
	stats  *StatsService
	cron   *cron.Cron
}

func NewSweeper(cfg *config.SweeperConfig, db *gorm.DB, logger *zap.Logger, router *Router, stats *StatsService) *Sweeper {
	return &Sweeper{
		cfg:    cfg,
		db:     db,
		logger: logger,
		router: router,
		stats:  stats,
	}
}

func (s *Sweeper) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Sweeper is disabled")
		return nil
	}

	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.sweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 5m", s.refreshStats); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Sweeper started", zap.String("schedule", s.cfg.Schedule))
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	s.logger.Info("Sweeper shutdown completed")
}

// sweep routes due scheduled posts in creation order, one batch per run
func (s *Sweeper) sweep() {
	ctx := context.Background()
	now := time.Now()

	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("mode = ?", models.ModeScheduled).
		Where("publish_state = ?", models.StateDraft).
		Where("approval_state IN ?", []models.ApprovalState{models.ApprovalApproved, models.ApprovalAutoApproved}).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at asc").
		Limit(s.cfg.BatchSize).
		Find(&posts).Error
	if err != nil {
		s.logger.Error("Failed to find due scheduled posts", zap.Error(err))
		return
	}

	if len(posts) == 0 {
		return
	}

	s.logger.Info("Routing due scheduled posts", zap.Int("count", len(posts)))

	for _, post := range posts {
		decision := s.router.Route(ctx, post.ID, "")
		if !decision.ShouldQueue {
			s.logger.Warn("Due post not queued",
				zap.String("post_id", post.ID),
				zap.String("reason", decision.Reason))
		}
	}
}

func (s *Sweeper) refreshStats() {
	if err := s.stats.Refresh(context.Background()); err != nil {
		s.logger.Error("Failed to refresh stats", zap.Error(err))
	}
}
