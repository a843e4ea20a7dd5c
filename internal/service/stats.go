package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/models"
)

// StatsService keeps daily rollups of queue and post counters
type StatsService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStatsService(db *gorm.DB, logger *zap.Logger) *StatsService {
	return &StatsService{
		db:     db,
		logger: logger,
	}
}

// Snapshot computes current counters without persisting them
func (s *StatsService) Snapshot(ctx context.Context) (*models.SystemStats, error) {
	db := s.db.WithContext(ctx)

	stats := &models.SystemStats{Date: time.Now().Truncate(24 * time.Hour)}

	counts := []struct {
		dest  *int
		model interface{}
		query string
		args  []interface{}
	}{
		{&stats.TotalPosts, &models.Post{}, "", nil},
		{&stats.PublishedPosts, &models.Post{}, "publish_state = ?", []interface{}{models.StatePublished}},
		{&stats.FailedPosts, &models.Post{}, "publish_state = ?", []interface{}{models.StateFailed}},
		{&stats.TotalJobs, &models.PublishingJob{}, "", nil},
		{&stats.QueuedJobs, &models.PublishingJob{}, "status = ?", []interface{}{models.JobQueued}},
		{&stats.ProcessingJobs, &models.PublishingJob{}, "status = ?", []interface{}{models.JobProcessing}},
		{&stats.CompletedJobs, &models.PublishingJob{}, "status = ?", []interface{}{models.JobCompleted}},
		{&stats.FailedJobs, &models.PublishingJob{}, "status = ?", []interface{}{models.JobFailed}},
		{&stats.CancelledJobs, &models.PublishingJob{}, "status = ?", []interface{}{models.JobCancelled}},
	}

	for _, c := range counts {
		var n int64
		q := db.Model(c.model)
		if c.query != "" {
			q = q.Where(c.query, c.args...)
		}
		if err := q.Count(&n).Error; err != nil {
			return nil, err
		}
		*c.dest = int(n)
	}

	return stats, nil
}

// Refresh upserts today's rollup row
func (s *StatsService) Refresh(ctx context.Context) error {
	stats, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	var existing models.SystemStats
	err = s.db.WithContext(ctx).Where("date = ?", stats.Date).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(stats).Error
	}
	if err != nil {
		return err
	}

	stats.ID = existing.ID
	stats.CreatedAt = existing.CreatedAt
	return s.db.WithContext(ctx).Save(stats).Error
}
