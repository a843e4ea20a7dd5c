package publisher

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

// Registry is the lookup table mapping platforms to their publishers.
// The worker resolves a publisher per job instead of branching on the
// platform inline.
type Registry struct {
	publishers map[models.Platform]Publisher
	logger     *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		publishers: make(map[models.Platform]Publisher),
		logger:     logger,
	}
}

func (r *Registry) Register(p Publisher) error {
	platform := p.Platform()
	if _, exists := r.publishers[platform]; exists {
		return fmt.Errorf("publisher for platform %s already registered", platform)
	}

	r.publishers[platform] = p
	r.logger.Info("Publisher registered", zap.String("platform", string(platform)))
	return nil
}

func (r *Registry) Get(platform models.Platform) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

func (r *Registry) Platforms() []models.Platform {
	var platforms []models.Platform
	for platform := range r.publishers {
		platforms = append(platforms, platform)
	}
	return platforms
}
