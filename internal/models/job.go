package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus tracks a publishing job through its lifecycle.
// A job becomes completed or failed only from processing; retry
// scheduling returns it to queued.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// JobType mirrors the publishing mode of the post the job carries
type JobType string

const (
	JobTypeScheduled JobType = "scheduled"
	JobTypeReactive  JobType = "reactive"
)

// JSONMap is a free-form JSON object stored in a jsonb column
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
}

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// PublishingJob is one attempt-tracking unit of work tied to a post.
// Jobs are never physically deleted; terminal statuses keep the audit
// trail.
type PublishingJob struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	PostID         string     `gorm:"not null;index;size:36" json:"post_id"`
	JobType        JobType    `gorm:"size:20;index" json:"job_type"`
	Status         JobStatus  `gorm:"size:20;default:'queued';index" json:"status"`
	Priority       int        `gorm:"default:5;index" json:"priority"`
	AttemptCount   int        `gorm:"default:0" json:"attempt_count"`
	MaxAttempts    int        `gorm:"default:3" json:"max_attempts"`
	WorkerID       string     `gorm:"size:64" json:"worker_id"`
	RateLimitKey   string     `gorm:"size:255;index" json:"rate_limit_key"`
	RateLimitUntil *time.Time `json:"rate_limit_until"`
	NextRetryAt    *time.Time `json:"next_retry_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	ErrorCode      string     `gorm:"size:50" json:"error_code"`
	ErrorDetails   JSONMap    `gorm:"type:jsonb" json:"error_details"`
	Metadata       JSONMap    `gorm:"type:jsonb" json:"metadata"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *PublishingJob) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}
