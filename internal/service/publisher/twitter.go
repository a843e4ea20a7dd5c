package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// TwitterPublisher posts tweets through the v2 tweets endpoint
type TwitterPublisher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewTwitter(cfg Config, logger *zap.Logger) *TwitterPublisher {
	return &TwitterPublisher{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *TwitterPublisher) Platform() models.Platform {
	return models.PlatformTwitter
}

func (p *TwitterPublisher) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	payload := map[string]interface{}{
		"text": post.Content,
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	url := fmt.Sprintf("%s/tweets", p.cfg.APIBase)
	status, errBody, err := postJSON(ctx, p.client, url, p.cfg.AccessToken, payload, &resp)
	if err != nil {
		return failure("NETWORK_ERROR", err.Error()), nil
	}
	if errBody != "" {
		p.logger.Warn("Twitter rejected publish",
			zap.Int("status", status),
			zap.String("post_id", post.ID))
		return failure("PLATFORM_REJECTED", errBody), nil
	}

	return &Result{
		Success:         true,
		PlatformPostID:  resp.Data.ID,
		PlatformPostURL: fmt.Sprintf("https://twitter.com/i/status/%s", resp.Data.ID),
		PublishedAt:     time.Now(),
	}, nil
}
