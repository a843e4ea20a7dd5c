package publisher

import (
	"context"
	"time"

	"github.com/eddyhq/eddy/internal/models"
)

// Result reports the outcome of a single publish attempt. A failed
// attempt is expressed through Success=false rather than a Go error;
// the worker turns it into retry or terminal failure.
type Result struct {
	Success         bool      `json:"success"`
	PlatformPostID  string    `json:"platform_post_id,omitempty"`
	PlatformPostURL string    `json:"platform_post_url,omitempty"`
	Error           string    `json:"error,omitempty"`
	ErrorCode       string    `json:"error_code,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
}

// Publisher pushes one post to one social platform. Auth and payload
// formatting are entirely the implementation's concern; the worker
// treats every platform through this single shape.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, post *models.Post) (*Result, error)
}

// Config carries the per-platform connection settings
type Config struct {
	Enabled     bool
	APIBase     string
	AccessToken string
}
