package publisher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// YouTubePublisher creates video posts through the Data API. The first
// line of the content becomes the title, the rest the description.
type YouTubePublisher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func NewYouTube(cfg Config, logger *zap.Logger) *YouTubePublisher {
	return &YouTubePublisher{
		cfg:    cfg,
		client: newHTTPClient(),
		logger: logger,
	}
}

func (p *YouTubePublisher) Platform() models.Platform {
	return models.PlatformYouTube
}

func (p *YouTubePublisher) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	title, description := splitTitle(post.Content)

	payload := map[string]interface{}{
		"snippet": map[string]string{
			"title":       title,
			"description": description,
		},
		"status": map[string]string{
			"privacyStatus": "public",
		},
	}

	var resp struct {
		ID string `json:"id"`
	}

	url := fmt.Sprintf("%s/videos", p.cfg.APIBase)
	status, errBody, err := postJSON(ctx, p.client, url, p.cfg.AccessToken, payload, &resp)
	if err != nil {
		return failure("NETWORK_ERROR", err.Error()), nil
	}
	if errBody != "" {
		p.logger.Warn("YouTube rejected publish",
			zap.Int("status", status),
			zap.String("post_id", post.ID))
		return failure("PLATFORM_REJECTED", errBody), nil
	}

	return &Result{
		Success:         true,
		PlatformPostID:  resp.ID,
		PlatformPostURL: fmt.Sprintf("https://www.youtube.com/watch?v=%s", resp.ID),
		PublishedAt:     time.Now(),
	}, nil
}

func splitTitle(content string) (string, string) {
	line, rest, found := strings.Cut(content, "\n")
	if !found {
		return content, ""
	}
	return line, strings.TrimSpace(rest)
}
