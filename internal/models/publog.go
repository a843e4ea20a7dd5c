package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogEvent names a state-changing event on a job
type LogEvent string

const (
	LogEventQueued    LogEvent = "queued"
	LogEventCompleted LogEvent = "completed"
	LogEventFailed    LogEvent = "failed"
	LogEventRetried   LogEvent = "retried"
	LogEventCancelled LogEvent = "cancelled"
)

// PublishingLog is an append-only audit record. The core never reads
// it back; it exists for operators and dashboards.
type PublishingLog struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"index;size:36" json:"post_id"`
	JobID     string    `gorm:"index;size:36" json:"job_id"`
	Event     LogEvent  `gorm:"size:20" json:"event"`
	Payload   JSONMap   `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (l *PublishingLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
