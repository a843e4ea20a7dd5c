package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/models"
)

// rateWindow is the trailing period successful publishes count against
const rateWindow = time.Hour

// RateLimitResult is the answer to "may this user publish to this
// platform right now"
type RateLimitResult struct {
	Allowed         bool `json:"allowed"`
	Remaining       int  `json:"remaining"`
	CooldownMinutes int  `json:"cooldown_minutes,omitempty"`
}

// RateLimiter counts recent successful publishes per (user, platform)
// against the resolved settings' rate table. It is a pure read; the
// queue applies cooldowns separately.
type RateLimiter struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRateLimiter(db *gorm.DB, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		db:     db,
		logger: logger,
	}
}

// Check fails open: if the count query itself breaks, publishing is
// allowed. Enforcement must not be the single point of failure that
// blocks all publishing.
func (r *RateLimiter) Check(ctx context.Context, settings models.PublishingSettings, userID string, platform models.Platform) RateLimitResult {
	if !settings.RateLimitEnabled {
		return RateLimitResult{Allowed: true}
	}

	limit, ok := settings.RateLimits[platform]
	if !ok {
		// No policy configured for this platform means no limit
		return RateLimitResult{Allowed: true}
	}

	since := time.Now().Add(-rateWindow)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ? AND platform = ? AND publish_state = ? AND published_at > ?",
			userID, platform, models.StatePublished, since).
		Count(&count).Error
	if err != nil {
		r.logger.Warn("Rate limit count failed, allowing publish",
			zap.String("user_id", userID),
			zap.String("platform", string(platform)),
			zap.Error(err))
		return RateLimitResult{Allowed: true}
	}

	if count >= int64(limit.MaxPerHour) {
		return RateLimitResult{
			Allowed:         false,
			CooldownMinutes: limit.CooldownMinutes,
		}
	}

	return RateLimitResult{
		Allowed:   true,
		Remaining: limit.MaxPerHour - int(count),
	}
}
