package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// InstagramPublisher pushes posts through the Instagram Graph API's
// content publishing endpoint.
type InstagramPublisher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewInstagram(cfg Config, logger *zap.Logger) *InstagramPublisher {
	return &InstagramPublisher{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *InstagramPublisher) Platform() models.Platform {
	return models.PlatformInstagram
}

func (p *InstagramPublisher) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	payload := map[string]interface{}{
		"caption":    post.Content,
		"media_type": "IMAGE",
	}
	if post.AccountID != "" {
		payload["ig_user_id"] = post.AccountID
	}

	var resp struct {
		ID        string `json:"id"`
		Permalink string `json:"permalink"`
	}

	url := fmt.Sprintf("%s/media_publish", p.cfg.APIBase)
	status, errBody, err := postJSON(ctx, p.client, url, p.cfg.AccessToken, payload, &resp)
	if err != nil {
		return failure("NETWORK_ERROR", err.Error()), nil
	}
	if errBody != "" {
		p.logger.Warn("Instagram rejected publish",
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
