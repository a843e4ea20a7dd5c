package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/models"
)

// Queue priorities by publishing mode; reactive posts jump ahead of
// pre-scheduled ones.
const (
	PriorityReactive  = 3
	PriorityScheduled = 5
)

// RouteDecision is the structured answer to "should this post be
// published now". Refusals are ordinary decisions with a reason, not
// errors.
type RouteDecision struct {
	Mode        models.PublishMode `json:"mode"`
	ShouldQueue bool               `json:"should_queue"`
	Reason      string             `json:"reason"`
	JobID       string             `json:"job_id,omitempty"`
}

// Router gates posts through kill switches, approval and scheduling
// checks, then enqueues the eligible ones.
type Router struct {
	db       *gorm.DB
	logger   *zap.Logger
	settings *SettingsService
	queue    *Queue
}

func NewRouter(db *gorm.DB, logger *zap.Logger, settings *SettingsService, queue *Queue) *Router {
	return &Router{
		db:       db,
		logger:   logger,
		settings: settings,
		queue:    queue,
	}
}

// Route evaluates the gating checks in order and short-circuits on the
// first refusal. It never returns an error: lower-level failures are
// folded into a non-queueing decision carrying the failure text.
func (r *Router) Route(ctx context.Context, postID string, forceMode models.PublishMode) RouteDecision {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RouteDecision{Mode: models.ModeScheduled, Reason: "Post not found"}
	}
	if err != nil {
		return RouteDecision{Mode: models.ModeScheduled, Reason: err.Error()}
	}

	mode := forceMode
	if mode == "" {
		mode = post.Mode
	}
	if mode == "" {
		mode = models.ModeScheduled
	}

	settings := r.settings.Resolve(ctx, post.UserID)

	if mode == models.ModeReactive && settings.ReactiveModeKillSwitch {
		return RouteDecision{Mode: mode, Reason: "Reactive mode is disabled by kill switch"}
	}

	if !post.ApprovalState.Approved() && settings.RequireApproval {
		return RouteDecision{Mode: mode, Reason: "Post requires approval"}
	}

	if mode == models.ModeScheduled {
		if post.ScheduledAt == nil {
			return RouteDecision{Mode: mode, Reason: "Scheduled time not set"}
		}
		if post.ScheduledAt.After(time.Now()) {
			// Echo the time back so callers know when to re-check
			return RouteDecision{
				Mode:   mode,
				Reason: fmt.Sprintf("Scheduled for %s", post.ScheduledAt.Format(time.RFC3339)),
			}
		}
	}

	// Idempotency guard against double-queueing an in-flight post
	if post.PublishState == models.StatePublished || post.PublishState == models.StatePublishing {
		return RouteDecision{Mode: mode, Reason: fmt.Sprintf("Post is already %s", post.PublishState)}
	}
	if post.PublishState == models.StateQueued {
		return RouteDecision{Mode: mode, Reason: "Post is already queued"}
	}

	priority := PriorityScheduled
	jobType := models.JobTypeScheduled
	if mode == models.ModeReactive {
		priority = PriorityReactive
		jobType = models.JobTypeReactive
	}

	job, err := r.queue.Enqueue(ctx, post.ID, jobType, EnqueueOptions{
		Priority:     priority,
		MaxAttempts:  settings.MaxRetries,
		RateLimitKey: post.RateLimitKey(),
		Metadata: models.JSONMap{
			"platform": string(post.Platform),
			"user_id":  post.UserID,
		},
	})
	if err != nil {
		r.logger.Error("Failed to enqueue post",
			zap.String("post_id", post.ID),
			zap.Error(err))
		return RouteDecision{Mode: mode, Reason: err.Error()}
	}

	now := time.Now()
	err = r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"publish_state": models.StateQueued,
			"queued_at":     now,
		}).Error
	if err != nil {
		r.logger.Error("Failed to mark post queued",
			zap.String("post_id", post.ID),
			zap.String("job_id", job.ID),
			zap.Error(err))
		return RouteDecision{Mode: mode, Reason: err.Error(), JobID: job.ID}
	}

	r.logger.Info("Post queued for publishing",
		zap.String("post_id", post.ID),
		zap.String("job_id", job.ID),
		zap.String("mode", string(mode)),
		zap.Int("priority", priority))

	return RouteDecision{
		Mode:        mode,
		ShouldQueue: true,
		Reason:      "Queued for publishing",
		JobID:       job.ID,
	}
}
