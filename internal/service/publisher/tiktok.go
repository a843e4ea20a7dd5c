package publisher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// TikTokPublisher posts through the TikTok content posting API
type TikTokPublisher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewTikTok(cfg Config, logger *zap.Logger) *TikTokPublisher {
	return &TikTokPublisher{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *TikTokPublisher) Platform() models.Platform {
	return models.PlatformTikTok
}

func (p *TikTokPublisher) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":         post.Content,
			"privacy_level": "PUBLIC_TO_EVERYONE",
		},
	}

	var resp struct {
		Data struct {
			PublishID string `json:"publish_id"`
			ShareURL  string `json:"share_url"`
		} `json:"data"`
	}

	url := fmt.Sprintf("%s/post/publish/", p.cfg.APIBase)
	status, errBody, err := postJSON(ctx, p.client, url, p.cfg.AccessToken, payload, &resp)
	if err != nil {
		return failure("NETWORK_ERROR", err.Error()), nil
	}
	if errBody != "" {
		p.logger.Warn("TikTok rejected publish",
			zap.Int("status", status),
			zap.String("post_id", post.ID))
		return failure("PLATFORM_REJECTED", errBody), nil
	}

	return &Result{
		Success:         true,
		PlatformPostID:  resp.Data.PublishID,
		PlatformPostURL: resp.Data.ShareURL,
		PublishedAt:     time.Now(),
	}, nil
}
