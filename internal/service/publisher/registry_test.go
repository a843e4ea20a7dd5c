package publisher

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/eddyhq/eddy/internal/models"
)

type stubPublisher struct {
	platform models.Platform
}

func (s *stubPublisher) Platform() models.Platform { return s.platform }

func (s *stubPublisher) Publish(context.Context, *models.Post) (*Result, error) {
	return &Result{Success: true}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	stub := &stubPublisher{platform: models.PlatformInstagram}
	if err := r.Register(stub); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := r.Get(models.PlatformInstagram)
	if !ok || got != Publisher(stub) {
		t.Fatalf("Get returned %v/%v, want the registered publisher", got, ok)
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	if err := r.Register(&stubPublisher{platform: models.PlatformTikTok}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(&stubPublisher{platform: models.PlatformTikTok}); err == nil {
		t.Fatalf("duplicate Register succeeded, want error")
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	if _, ok := r.Get(models.PlatformYouTube); ok {
		t.Fatalf("Get on empty registry returned a publisher")
	}
	if platforms := r.Platforms(); len(platforms) != 0 {
		t.Fatalf("Platforms on empty registry = %v", platforms)
	}
}
