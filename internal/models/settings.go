package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateLimit caps publishing throughput for one platform
type RateLimit struct {
	MaxPerHour      int `json:"max_per_hour"`
	CooldownMinutes int `json:"cooldown_minutes"`
}

// RateLimitTable maps platforms to their limits, stored as jsonb
type RateLimitTable map[Platform]RateLimit

// Scan implements the sql.Scanner interface
func (t *RateLimitTable) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into RateLimitTable", value)
	}
}

// Value implements the driver.Valuer interface
func (t RateLimitTable) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// PublishingSettingsRow is one stored settings row. The row with an
// empty UserID is the global default tier. All policy fields are
// nullable so an absent field falls through to the next tier.
type PublishingSettingsRow struct {
	ID                     string         `gorm:"primaryKey;size:36" json:"id"`
	UserID                 string         `gorm:"uniqueIndex;size:36" json:"user_id"`
	RequireApproval        *bool          `json:"require_approval"`
	AutoApproveCampaigns   *bool          `json:"auto_approve_campaigns"`
	ReactiveModeEnabled    *bool          `json:"reactive_mode_enabled"`
	ReactiveModeKillSwitch *bool          `json:"reactive_mode_kill_switch"`
	RateLimitEnabled       *bool          `json:"rate_limit_enabled"`
	RateLimits             RateLimitTable `gorm:"type:jsonb" json:"rate_limits"`
	MaxRetries             *int           `json:"max_retries"`
	RetryDelayMinutes      *int           `json:"retry_delay_minutes"`
	RetryBackoffMultiplier *float64       `json:"retry_backoff_multiplier"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PublishingSettingsRow) TableName() string {
	return "publishing_settings"
}

func (r *PublishingSettingsRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// PublishingSettings is the fully resolved configuration for a user:
// every field carries a concrete value after the user row, global row
// and hardcoded defaults have been merged.
type PublishingSettings struct {
	RequireApproval        bool           `json:"require_approval"`
	AutoApproveCampaigns   bool           `json:"auto_approve_campaigns"`
	ReactiveModeEnabled    bool           `json:"reactive_mode_enabled"`
	ReactiveModeKillSwitch bool           `json:"reactive_mode_kill_switch"`
	RateLimitEnabled       bool           `json:"rate_limit_enabled"`
	RateLimits             RateLimitTable `json:"rate_limits"`
	MaxRetries             int            `json:"max_retries"`
	RetryDelayMinutes      int            `json:"retry_delay_minutes"`
	RetryBackoffMultiplier float64        `json:"retry_backoff_multiplier"`
}
