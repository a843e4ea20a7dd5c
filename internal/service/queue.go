package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/models"
	"github.com/eddyhq/eddy/pkg/util"
)

const (
	// DefaultPriority applies when the caller does not pick one;
	// lower numbers are served first.
	DefaultPriority = 5

	// DefaultMaxAttempts caps publish retries per job
	DefaultMaxAttempts = 3

	maxErrorMessageLen = 2000

	// claimRetries bounds how many claim races a single ClaimNext
	// call loses before reporting an empty queue.
	claimRetries = 10
)

// JobError carries failure details onto a job record
type JobError struct {
	Message string
	Code    string
	Details models.JSONMap
}

// EnqueueOptions tune a single enqueue call
type EnqueueOptions struct {
	Priority     int
	MaxAttempts  int
	RateLimitKey string
	Metadata     models.JSONMap
}

// Queue is the durable store of publishing jobs. Enqueue always
// creates a fresh row; deduplication is the router's responsibility.
type Queue struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewQueue(db *gorm.DB, logger *zap.Logger) *Queue {
	return &Queue{
		db:     db,
		logger: logger,
	}
}

// Enqueue inserts a job in queued status and appends a queued log entry
func (q *Queue) Enqueue(ctx context.Context, postID string, jobType models.JobType, opts EnqueueOptions) (*models.PublishingJob, error) {
	if opts.Priority <= 0 {
		opts.Priority = DefaultPriority
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	job := &models.PublishingJob{
		PostID:       postID,
		JobType:      jobType,
		Status:       models.JobQueued,
		Priority:     opts.Priority,
		MaxAttempts:  opts.MaxAttempts,
		RateLimitKey: opts.RateLimitKey,
		Metadata:     opts.Metadata,
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue job for post %s: %w", postID, err)
	}

	q.appendLog(ctx, postID, job.ID, models.LogEventQueued, models.JSONMap{
		"job_type": string(jobType),
		"priority": opts.Priority,
	})

	return job, nil
}

// ClaimNext atomically takes ownership of the most urgent eligible
// job: lowest priority number first, oldest first within a priority,
// skipping jobs deferred by a cooldown or a pending retry delay. The
// claim is a conditional update guarded on status, so two racing
// workers can never both win the same job. Returns nil when no job is
// eligible.
func (q *Queue) ClaimNext(ctx context.Context, workerID string, jobTypes ...models.JobType) (*models.PublishingJob, error) {
	now := time.Now()

	for attempt := 0; attempt < claimRetries; attempt++ {
		var candidate models.PublishingJob

		query := q.db.WithContext(ctx).
			Where("status = ?", models.JobQueued).
			Where("rate_limit_until IS NULL OR rate_limit_until <= ?", now).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now)
		if len(jobTypes) > 0 {
			query = query.Where("job_type IN ?", jobTypes)
		}

		err := query.Order("priority asc, created_at asc").First(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select next job: %w", err)
		}

		res := q.db.WithContext(ctx).Model(&models.PublishingJob{}).
			Where("id = ? AND status = ?", candidate.ID, models.JobQueued).
			Updates(map[string]interface{}{
				"status":        models.JobProcessing,
				"worker_id":     workerID,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", candidate.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Another worker won this job; pick the next candidate
			continue
		}

		var claimed models.PublishingJob
		if err := q.db.WithContext(ctx).First(&claimed, "id = ?", candidate.ID).Error; err != nil {
			return nil, fmt.Errorf("failed to reload claimed job %s: %w", candidate.ID, err)
		}
		return &claimed, nil
	}

	return nil, nil
}

// Complete moves a processing job to its terminal status and appends
// the matching log entry.
func (q *Queue) Complete(ctx context.Context, jobID string, success bool, jobErr *JobError) error {
	now := time.Now()

	status := models.JobCompleted
	event := models.LogEventCompleted
	if !success {
		status = models.JobFailed
		event = models.LogEventFailed
	}

	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}
	payload := models.JSONMap{"status": string(status)}

	if jobErr != nil {
		updates["error_message"] = util.Truncate(jobErr.Message, maxErrorMessageLen)
		updates["error_code"] = jobErr.Code
		if jobErr.Details != nil {
			updates["error_details"] = jobErr.Details
		}
		payload["error_code"] = jobErr.Code
	}

	res := q.db.WithContext(ctx).Model(&models.PublishingJob{}).
		Where("id = ? AND status = ?", jobID, models.JobProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s is not processing", jobID)
	}

	q.appendLog(ctx, q.postIDForJob(ctx, jobID), jobID, event, payload)
	return nil
}

// ScheduleRetry returns a processing job to queued with a retry delay.
// Any standing cooldown is cleared: a retry is a fresh opportunity,
// not a continuation of a prior rate limit.
func (q *Queue) ScheduleRetry(ctx context.Context, jobID string, delayMinutes int) error {
	nextRetry := time.Now().Add(time.Duration(delayMinutes) * time.Minute)

	res := q.db.WithContext(ctx).Model(&models.PublishingJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":           models.JobQueued,
			"next_retry_at":    nextRetry,
			"rate_limit_until": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to schedule retry for job %s: %w", jobID, res.Error)
	}

	q.appendLog(ctx, q.postIDForJob(ctx, jobID), jobID, models.LogEventRetried, models.JSONMap{
		"delay_minutes": delayMinutes,
		"next_retry_at": nextRetry.Format(time.RFC3339),
	})
	return nil
}

// ApplyRateLimit defers every queued job sharing the key uniformly
func (q *Queue) ApplyRateLimit(ctx context.Context, rateLimitKey string, cooldownMinutes int) error {
	until := time.Now().Add(time.Duration(cooldownMinutes) * time.Minute)

	res := q.db.WithContext(ctx).Model(&models.PublishingJob{}).
		Where("rate_limit_key = ? AND status = ?", rateLimitKey, models.JobQueued).
		Update("rate_limit_until", until)
	if res.Error != nil {
		return fmt.Errorf("failed to apply rate limit for key %s: %w", rateLimitKey, res.Error)
	}

	q.logger.Info("Rate limit applied",
		zap.String("rate_limit_key", rateLimitKey),
		zap.Int("cooldown_minutes", cooldownMinutes),
		zap.Int64("jobs_deferred", res.RowsAffected))
	return nil
}

// Cancel withdraws a job that has not been claimed yet
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	res := q.db.WithContext(ctx).Model(&models.PublishingJob{}).
		Where("id = ? AND status = ?", jobID, models.JobQueued).
		Updates(map[string]interface{}{
			"status":       models.JobCancelled,
			"completed_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s is not queued", jobID)
	}

	q.appendLog(ctx, q.postIDForJob(ctx, jobID), jobID, models.LogEventCancelled, nil)
	return nil
}

// JobsForPost returns the publish history for a post, newest first
func (q *Queue) JobsForPost(ctx context.Context, postID string) ([]models.PublishingJob, error) {
	var jobs []models.PublishingJob
	err := q.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at desc").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for post %s: %w", postID, err)
	}
	return jobs, nil
}

// appendLog writes an audit entry. The log is a write-only sink, so a
// failed write is reported and swallowed rather than failing the
// operation that triggered it.
func (q *Queue) appendLog(ctx context.Context, postID, jobID string, event models.LogEvent, payload models.JSONMap) {
	entry := &models.PublishingLog{
		PostID:  postID,
		JobID:   jobID,
		Event:   event,
		Payload: payload,
	}
	if err := q.db.WithContext(ctx).Create(entry).Error; err != nil {
		q.logger.Warn("Failed to append publishing log",
			zap.String("job_id", jobID),
			zap.String("event", string(event)),
			zap.Error(err))
	}
}

func (q *Queue) postIDForJob(ctx context.Context, jobID string) string {
	var job models.PublishingJob
	if err := q.db.WithContext(ctx).Select("post_id").First(&job, "id = ?", jobID).Error; err != nil {
		return ""
	}
	return job.PostID
}
