package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform identifies a supported social network
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
)

// AllPlatforms lists every platform the system can publish to
var AllPlatforms = []Platform{
	PlatformInstagram,
	PlatformTikTok,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformFacebook,
	PlatformYouTube,
}

func (p Platform) Valid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// PublishMode determines how a post becomes eligible for publishing
type PublishMode string

const (
	ModeScheduled PublishMode = "scheduled"
	ModeReactive  PublishMode = "reactive"
)

// ApprovalState tracks the review lifecycle of a post
type ApprovalState string

const (
	ApprovalPending      ApprovalState = "pending"
	ApprovalApproved     ApprovalState = "approved"
	ApprovalAutoApproved ApprovalState = "auto_approved"
	ApprovalRejected     ApprovalState = "rejected"
)

// Approved reports whether the state allows publishing
func (a ApprovalState) Approved() bool {
	return a == ApprovalApproved || a == ApprovalAutoApproved
}

// PublishState tracks where a post is in the publish lifecycle.
// It only advances draft -> queued -> publishing -> published/failed,
// except that retries return publishing posts to queued.
type PublishState string

const (
	StateDraft      PublishState = "draft"
	StateQueued     PublishState = "queued"
	StatePublishing PublishState = "publishing"
	StatePublished  PublishState = "published"
	StateFailed     PublishState = "failed"
)

// TriggerEvent names the application event that fired a reactive post
type TriggerEvent string

const (
	TriggerFileUpload    TriggerEvent = "file_upload"
	TriggerDropFlag      TriggerEvent = "drop_flag"
	TriggerCampaignStart TriggerEvent = "campaign_start"
	TriggerManual        TriggerEvent = "manual"
	TriggerTrendTrigger  TriggerEvent = "trend_trigger"
)

type Post struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	UserID          string        `gorm:"not null;index;size:36" json:"user_id"`
	AccountID       string        `gorm:"size:64" json:"account_id"`
	Platform        Platform      `gorm:"not null;size:50;index" json:"platform"`
	Mode            PublishMode   `gorm:"size:20;default:'scheduled'" json:"mode"`
	ApprovalState   ApprovalState `gorm:"size:20;default:'pending'" json:"approval_state"`
	PublishState    PublishState  `gorm:"size:20;default:'draft';index" json:"publish_state"`
	Content         string        `gorm:"type:text" json:"content"`
	TriggerEvent    TriggerEvent  `gorm:"size:50" json:"trigger_event"`
	ScheduledAt     *time.Time    `json:"scheduled_at"`
	QueuedAt        *time.Time    `json:"queued_at"`
	PublishedAt     *time.Time    `gorm:"index" json:"published_at"`
	PlatformPostID  string        `gorm:"size:255" json:"platform_post_id"`
	PlatformPostURL string        `gorm:"size:500" json:"platform_post_url"`
	RetryCount      int           `gorm:"default:0" json:"retry_count"`
	ErrorMessage    string        `gorm:"type:text" json:"error_message"`
	ErrorCode       string        `gorm:"size:50" json:"error_code"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// RateLimitKey groups publish-rate accounting and cooldown application.
// Format: platform_userID, with the platform account appended when present.
func (p *Post) RateLimitKey() string {
	if p.AccountID != "" {
		return fmt.Sprintf("%s_%s_%s", p.Platform, p.UserID, p.AccountID)
	}
	return fmt.Sprintf("%s_%s", p.Platform, p.UserID)
}
