package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/eddyhq/eddy/internal/models"
)

// newTestDB opens a throwaway sqlite database with the full schema.
// File-backed (not :memory:) so concurrent claim tests see one store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "eddy-test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// createPost persists p after filling unset fields with workable
// defaults: an approved instagram post in draft.
func createPost(t *testing.T, db *gorm.DB, p *models.Post) *models.Post {
	t.Helper()

	if p.UserID == "" {
		p.UserID = "user-1"
	}
	if p.Platform == "" {
		p.Platform = models.PlatformInstagram
	}
	if p.Mode == "" {
		p.Mode = models.ModeScheduled
	}
	if p.ApprovalState == "" {
		p.ApprovalState = models.ApprovalApproved
	}
	if p.PublishState == "" {
		p.PublishState = models.StateDraft
	}
	if p.Content == "" {
		p.Content = "hello world"
	}

	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	return p
}

func reloadPost(t *testing.T, db *gorm.DB, id string) *models.Post {
	t.Helper()

	var post models.Post
	if err := db.First(&post, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload post %s: %v", id, err)
	}
	return &post
}

func reloadJob(t *testing.T, db *gorm.DB, id string) *models.PublishingJob {
	t.Helper()

	var job models.PublishingJob
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload job %s: %v", id, err)
	}
	return &job
}

func timePtr(v time.Time) *time.Time { return &v }

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// within asserts got is inside tolerance of want
func within(t *testing.T, got, want time.Time, tolerance time.Duration, label string) {
	t.Helper()

	diff := got.Sub(want)
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Fatalf("%s = %v, want within %v of %v", label, got, tolerance, want)
	}
}
