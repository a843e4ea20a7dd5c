package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eddyhq/eddy/internal/models"
)

// Hardcoded policy defaults. These apply field-by-field whenever
// neither the user row nor the global row carries a value.
const (
	DefaultRequireApproval        = true
	DefaultAutoApproveCampaigns   = false
	DefaultReactiveModeEnabled    = true
	DefaultReactiveModeKillSwitch = false
	DefaultRateLimitEnabled       = true
	DefaultMaxRetries             = 3
	DefaultRetryDelayMinutes      = 15
	DefaultRetryBackoffMultiplier = 2.0
)

// DefaultRateLimits returns the built-in per-platform rate table
func DefaultRateLimits() models.RateLimitTable {
	return models.RateLimitTable{
		models.PlatformInstagram: {MaxPerHour: 3, CooldownMinutes: 20},
		models.PlatformTikTok:    {MaxPerHour: 5, CooldownMinutes: 15},
		models.PlatformTwitter:   {MaxPerHour: 10, CooldownMinutes: 10},
		models.PlatformLinkedIn:  {MaxPerHour: 5, CooldownMinutes: 15},
		models.PlatformFacebook:  {MaxPerHour: 10, CooldownMinutes: 10},
		models.PlatformYouTube:   {MaxPerHour: 2, CooldownMinutes: 30},
	}
}

// DefaultSettings returns the fully resolved hardcoded configuration
func DefaultSettings() models.PublishingSettings {
	return models.PublishingSettings{
		RequireApproval:        DefaultRequireApproval,
		AutoApproveCampaigns:   DefaultAutoApproveCampaigns,
		ReactiveModeEnabled:    DefaultReactiveModeEnabled,
		ReactiveModeKillSwitch: DefaultReactiveModeKillSwitch,
		RateLimitEnabled:       DefaultRateLimitEnabled,
		RateLimits:             DefaultRateLimits(),
		MaxRetries:             DefaultMaxRetries,
		RetryDelayMinutes:      DefaultRetryDelayMinutes,
		RetryBackoffMultiplier: DefaultRetryBackoffMultiplier,
	}
}

// SettingsService resolves effective publishing configuration by
// merging a user's row over the global row over hardcoded defaults.
type SettingsService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSettingsService(db *gorm.DB, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		db:     db,
		logger: logger,
	}
}

// Resolve never fails: missing rows default, and a store error yields
// the full hardcoded defaults. This data is advisory; its fetch path
// must not become a reason publishing stops.
func (s *SettingsService) Resolve(ctx context.Context, userID string) models.PublishingSettings {
	userRow, err := s.fetch(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load user settings, using defaults",
			zap.String("user_id", userID),
			zap.Error(err))
		return DefaultSettings()
	}

	globalRow, err := s.fetch(ctx, "")
	if err != nil {
		s.logger.Warn("Failed to load global settings, using defaults",
			zap.Error(err))
		return DefaultSettings()
	}

	return mergeSettings(userRow, globalRow)
}

// Upsert stores a settings row, keyed by user (empty user = global)
func (s *SettingsService) Upsert(ctx context.Context, row *models.PublishingSettingsRow) error {
	var existing models.PublishingSettingsRow
	err := s.db.WithContext(ctx).Where("user_id = ?", row.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(row).Error
	}
	if err != nil {
		return err
	}

	row.ID = existing.ID
	return s.db.WithContext(ctx).Save(row).Error
}

func (s *SettingsService) fetch(ctx context.Context, userID string) (*models.PublishingSettingsRow, error) {
	var row models.PublishingSettingsRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Absence is a valid state, resolved by defaulting
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// mergeSettings resolves each field as user value, else global value,
// else hardcoded default. Either row may be nil.
func mergeSettings(user, global *models.PublishingSettingsRow) models.PublishingSettings {
	row := func(r *models.PublishingSettingsRow) models.PublishingSettingsRow {
		if r == nil {
			return models.PublishingSettingsRow{}
		}
		return *r
	}
	u, g := row(user), row(global)

	resolved := DefaultSettings()
	resolved.RequireApproval = pickBool(u.RequireApproval, g.RequireApproval, DefaultRequireApproval)
	resolved.AutoApproveCampaigns = pickBool(u.AutoApproveCampaigns, g.AutoApproveCampaigns, DefaultAutoApproveCampaigns)
	resolved.ReactiveModeEnabled = pickBool(u.ReactiveModeEnabled, g.ReactiveModeEnabled, DefaultReactiveModeEnabled)
	resolved.ReactiveModeKillSwitch = pickBool(u.ReactiveModeKillSwitch, g.ReactiveModeKillSwitch, DefaultReactiveModeKillSwitch)
	resolved.RateLimitEnabled = pickBool(u.RateLimitEnabled, g.RateLimitEnabled, DefaultRateLimitEnabled)
	resolved.MaxRetries = pickInt(u.MaxRetries, g.MaxRetries, DefaultMaxRetries)
	resolved.RetryDelayMinutes = pickInt(u.RetryDelayMinutes, g.RetryDelayMinutes, DefaultRetryDelayMinutes)
	resolved.RetryBackoffMultiplier = pickFloat(u.RetryBackoffMultiplier, g.RetryBackoffMultiplier, DefaultRetryBackoffMultiplier)

	if u.RateLimits != nil {
		resolved.RateLimits = u.RateLimits
	} else if g.RateLimits != nil {
		resolved.RateLimits = g.RateLimits
	}

	return resolved
}

func pickBool(user, global *bool, def bool) bool {
	if user != nil {
		return *user
	}
	if global != nil {
		return *global
	}
	return def
}

func pickInt(user, global *int, def int) int {
	if user != nil {
		return *user
	}
	if global != nil {
		return *global
	}
	return def
}

func pickFloat(user, global *float64, def float64) float64 {
	if user != nil {
		return *user
	}
	if global != nil {
		return *global
	}
	return def
}
