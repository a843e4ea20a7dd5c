package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// FacebookPublisher posts to a page feed through the Graph API
type FacebookPublisher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewFacebook(cfg Config, logger *zap.Logger) *FacebookPublisher {
	return &FacebookPublisher{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *FacebookPublisher) Platform() models.Platform {
	return models.PlatformFacebook
}

func (p *FacebookPublisher) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	page := post.AccountID
	if page == "" {
		page = "me"
	}

	payload := map[string]interface{}{
		"message": post.Content,
	}

	var resp struct {
		ID        string `json:"id"`
		Permalink string `json:"permalink_url"`
	}

	url := fmt.Sprintf("%s/%s/feed", p.cfg.APIBase, page)
	status, errBody, err := postJSON(ctx, p.client, url, p.cfg.AccessToken, payload, &resp)
	if err != nil {
		return failure("NETWORK_ERROR", err.Error()), nil
	}
	if errBody != "" {
		p.logger.Warn("Facebook rejected publish",
			zap.Int("status", status),
			zap.String("post_id", post.ID))
		return failure("PLATFORM_REJECTED", errBody), nil
	}

	return &Result{
		Success:         true,
		PlatformPostID:  resp.ID,
		PlatformPostURL: resp.Permalink,
		PublishedAt:     time.Now(),
	}, nil
}
