package models

import "time"

// SystemStats is a daily rollup of queue and post counters
type SystemStats struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Date           time.Time `gorm:"uniqueIndex" json:"date"`
	TotalPosts     int       `json:"total_posts"`
	PublishedPosts int       `json:"published_posts"`
	FailedPosts    int       `json:"failed_posts"`
	TotalJobs      int       `json:"total_jobs"`
	QueuedJobs     int       `json:"queued_jobs"`
	ProcessingJobs int       `json:"processing_jobs"`
	CompletedJobs  int       `json:"completed_jobs"`
	FailedJobs     int       `json:"failed_jobs"`
	CancelledJobs  int       `json:"cancelled_jobs"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
