package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// LinkedInPublisher creates UGC posts on behalf of a member or page
type LinkedInPublisher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewLinkedIn(cfg Config, logger *zap.Logger) *LinkedInPublisher {
	return &LinkedInPublisher{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *LinkedInPublisher) Platform() models.Platform {
	return models.PlatformLinkedIn
}

func (p *LinkedInPublisher) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	author := post.AccountID
	if author == "" {
		author = post.UserID
	}

	payload := map[string]interface{}{
		"author":         fmt.Sprintf("urn:li:person:%s", author),
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary":    map[string]string{"text": post.Content},
				"shareMediaCategory": "NONE",
			},
		},
	}

	var resp struct {
		ID string `json:"id"`
	}

	url := fmt.Sprintf("%s/ugcPosts", p.cfg.APIBase)
	status, errBody, err := postJSON(ctx, p.client, url, p.cfg.AccessToken, payload, &resp)
	if err != nil {
		return failure("NETWORK_ERROR", err.Error()), nil
	}
	if errBody != "" {
		p.logger.Warn("LinkedIn rejected publish",
			zap.Int("status", status),
			zap.String("post_id", post.ID))
		return failure("PLATFORM_REJECTED", errBody), nil
	}

	return &Result{
		Success:         true,
		PlatformPostID:  resp.ID,
		PlatformPostURL: fmt.Sprintf("https://www.linkedin.com/feed/update/%s", resp.ID),
		PublishedAt:     time.Now(),
	}, nil
}
