package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/models"
	"github.com/eddyhq/eddy/internal/service/publisher"
	"github.com/eddyhq/eddy/pkg/util"
)

// Error codes recorded on terminally failed jobs
const (
	ErrCodePostNotFound = "POST_NOT_FOUND"
	ErrCodeNotApproved  = "NOT_APPROVED"
	ErrCodeNoPublisher  = "NO_PUBLISHER"
	ErrCodePublishError = "PUBLISH_ERROR"
)

// WorkerOptions configure one worker loop
type WorkerOptions struct {
	WorkerID       string
	BatchSize      int
	PollInterval   time.Duration
	PacingDelay    time.Duration
	PublishTimeout time.Duration
	Enabled        bool
}

// Worker polls the queue, claims jobs and drives each one through the
// publish state machine. Multiple workers may run against the same
// store; the queue's atomic claim keeps them from colliding.
type Worker struct {
	opts     WorkerOptions
	db       *gorm.DB
	logger   *zap.Logger
	settings *SettingsService
	limiter  *RateLimiter
	queue    *Queue
	registry *publisher.Registry
	stopCh   chan struct{}
}

func NewWorker(
	db *gorm.DB,
	logger *zap.Logger,
	settings *SettingsService,
	limiter *RateLimiter,
	queue *Queue,
	registry *publisher.Registry,
	opts WorkerOptions,
) *Worker {
	if opts.WorkerID == "" {
		opts.WorkerID = uuid.NewString()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PacingDelay <= 0 {
		opts.PacingDelay = 500 * time.Millisecond
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 60 * time.Second
	}

	return &Worker{
		opts:     opts,
		db:       db,
		logger:   logger.With(zap.String("worker_id", opts.WorkerID)),
		settings: settings,
		limiter:  limiter,
		queue:    queue,
		registry: registry,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the poll loop. A disabled worker never starts polling
// and Start returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	if !w.opts.Enabled {
		w.logger.Info("Worker is disabled")
		return nil
	}

	w.logger.Info("Starting worker",
		zap.Int("batch_size", w.opts.BatchSize),
		zap.Duration("poll_interval", w.opts.PollInterval))

	go func() {
		for {
			w.runBatch(ctx)

			select {
			case <-time.After(w.opts.PollInterval):
			case <-w.stopCh:
				w.logger.Info("Worker stopped")
				return
			case <-ctx.Done():
				w.logger.Info("Worker context cancelled")
				return
			}
		}
	}()

	return nil
}

// Stop signals the loop to exit after any in-flight job finishes
func (w *Worker) Stop() {
	close(w.stopCh)
}

// runBatch claims and processes up to BatchSize jobs serially, pacing
// between jobs so one worker cannot burst a rate-limited platform.
func (w *Worker) runBatch(ctx context.Context) {
	for i := 0; i < w.opts.BatchSize; i++ {
		job, err := w.queue.ClaimNext(ctx, w.opts.WorkerID)
		if err != nil {
			w.logger.Error("Failed to claim job", zap.Error(err))
			return
		}
		if job == nil {
			return
		}

		res := w.processJob(ctx, job)
		w.logger.Info("Job processed",
			zap.String("job_id", job.ID),
			zap.String("post_id", job.PostID),
			zap.Bool("success", res.Success),
			zap.String("outcome", res.Outcome))

		select {
		case <-time.After(w.opts.PacingDelay):
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processResult summarizes one processJob run; no error ever escapes
// to the poll loop.
type processResult struct {
	Success bool
	Outcome string
	Err     string
}

func (w *Worker) processJob(ctx context.Context, job *models.PublishingJob) processResult {
	var post models.Post
	err := w.db.WithContext(ctx).First(&post, "id = ?", job.PostID).Error
	if err != nil {
		w.failJob(ctx, job, &JobError{
			Message: fmt.Sprintf("post %s not found: %v", job.PostID, err),
			Code:    ErrCodePostNotFound,
		})
		return processResult{Outcome: "post_not_found", Err: err.Error()}
	}

	settings := w.settings.Resolve(ctx, post.UserID)

	// Approval may have been revoked between enqueue and claim. That
	// is a misconfiguration, not a platform failure: the post goes
	// back to draft instead of failed.
	if settings.RequireApproval && !post.ApprovalState.Approved() {
		w.failJob(ctx, job, &JobError{
			Message: fmt.Sprintf("post is %s, approval required", post.ApprovalState),
			Code:    ErrCodeNotApproved,
		})
		w.updatePost(ctx, post.ID, map[string]interface{}{
			"publish_state": models.StateDraft,
			"error_message": "Approval required before publishing",
			"error_code":    ErrCodeNotApproved,
		})
		return processResult{Outcome: "not_approved"}
	}

	limit := w.limiter.Check(ctx, settings, post.UserID, post.Platform)
	if !limit.Allowed {
		// Deferred, not failed: the cooldown stalls every queued job
		// on this key and the claimed job retries after it elapses.
		if err := w.queue.ApplyRateLimit(ctx, job.RateLimitKey, limit.CooldownMinutes); err != nil {
			w.logger.Warn("Failed to apply rate limit", zap.Error(err))
		}
		if err := w.queue.ScheduleRetry(ctx, job.ID, limit.CooldownMinutes); err != nil {
			w.logger.Error("Failed to schedule rate-limited retry",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
		return processResult{Outcome: "rate_limited"}
	}

	w.updatePost(ctx, post.ID, map[string]interface{}{
		"publish_state": models.StatePublishing,
	})

	result := w.publish(ctx, &post)

	if result.Success {
		publishedAt := result.PublishedAt
		if publishedAt.IsZero() {
			publishedAt = time.Now()
		}
		w.updatePost(ctx, post.ID, map[string]interface{}{
			"publish_state":     models.StatePublished,
			"published_at":      publishedAt,
			"platform_post_id":  result.PlatformPostID,
			"platform_post_url": result.PlatformPostURL,
			"error_message":     "",
			"error_code":        "",
		})
		if err := w.queue.Complete(ctx, job.ID, true, nil); err != nil {
			w.logger.Warn("Failed to complete job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return processResult{Success: true, Outcome: "published"}
	}

	return w.handleFailure(ctx, job, &post, settings, result)
}

// publish resolves the platform's publisher and runs it under the
// call-level timeout.
func (w *Worker) publish(ctx context.Context, post *models.Post) *publisher.Result {
	pub, ok := w.registry.Get(post.Platform)
	if !ok {
		return &publisher.Result{
			Success:   false,
			Error:     fmt.Sprintf("no publisher registered for platform %s", post.Platform),
			ErrorCode: ErrCodeNoPublisher,
		}
	}

	pctx, cancel := context.WithTimeout(ctx, w.opts.PublishTimeout)
	defer cancel()

	result, err := pub.Publish(pctx, post)
	if err != nil {
		return &publisher.Result{
			Success:   false,
			Error:     err.Error(),
			ErrorCode: ErrCodePublishError,
		}
	}
	if result == nil {
		return &publisher.Result{
			Success:   false,
			Error:     "publisher returned no result",
			ErrorCode: ErrCodePublishError,
		}
	}
	return result
}

func (w *Worker) handleFailure(ctx context.Context, job *models.PublishingJob, post *models.Post, settings models.PublishingSettings, result *publisher.Result) processResult {
	errCode := result.ErrorCode
	if errCode == "" {
		errCode = ErrCodePublishError
	}
	errMsg := util.Truncate(result.Error, maxErrorMessageLen)

	if job.AttemptCount < job.MaxAttempts {
		delay := backoffDelay(settings, job.AttemptCount-1)
		if err := w.queue.ScheduleRetry(ctx, job.ID, delay); err != nil {
			w.logger.Error("Failed to schedule retry",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
		w.updatePost(ctx, post.ID, map[string]interface{}{
			"publish_state": models.StateQueued,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": errMsg,
			"error_code":    errCode,
		})
		w.logger.Warn("Publish failed, retry scheduled",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.AttemptCount),
			zap.Int("delay_minutes", delay))
		return processResult{Outcome: "retry_scheduled", Err: result.Error}
	}

	w.failJob(ctx, job, &JobError{Message: errMsg, Code: errCode})
	w.updatePost(ctx, post.ID, map[string]interface{}{
		"publish_state": models.StateFailed,
		"error_message": errMsg,
		"error_code":    errCode,
	})
	w.logger.Error("Publish failed permanently",
		zap.String("job_id", job.ID),
		zap.String("post_id", post.ID),
		zap.Int("attempts", job.AttemptCount))
	return processResult{Outcome: "failed", Err: result.Error}
}

func (w *Worker) failJob(ctx context.Context, job *models.PublishingJob, jobErr *JobError) {
	if err := w.queue.Complete(ctx, job.ID, false, jobErr); err != nil {
		w.logger.Warn("Failed to mark job failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

// updatePost applies bookkeeping updates; failures are logged and
// swallowed so one post's bookkeeping cannot crash the poll cycle.
func (w *Worker) updatePost(ctx context.Context, postID string, updates map[string]interface{}) {
	err := w.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(updates).Error
	if err != nil {
		w.logger.Warn("Failed to update post",
			zap.String("post_id", postID),
			zap.Error(err))
	}
}

// backoffDelay computes the exponential retry delay in whole minutes
// for the given zero-based attempt number.
func backoffDelay(settings models.PublishingSettings, attempt int) int {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(settings.RetryDelayMinutes) * math.Pow(settings.RetryBackoffMultiplier, float64(attempt))
	return int(delay)
}
