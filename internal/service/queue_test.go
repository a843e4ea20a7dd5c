package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eddyhq/eddy/internal/models"
)

func TestEnqueueDefaults(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})
	job, err := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if job.Status != models.JobQueued {
		t.Errorf("status = %s, want queued", job.Status)
	}
	if job.Priority != DefaultPriority {
		t.Errorf("priority = %d, want default %d", job.Priority, DefaultPriority)
	}
	if job.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max_attempts = %d, want default %d", job.MaxAttempts, DefaultMaxAttempts)
	}
	if job.AttemptCount != 0 {
		t.Errorf("attempt_count = %d, want 0 before any claim", job.AttemptCount)
	}

	var logs []models.PublishingLog
	if err := db.Where("job_id = ?", job.ID).Find(&logs).Error; err != nil {
		t.Fatalf("failed to load logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != models.LogEventQueued {
		t.Fatalf("logs = %+v, want one queued entry", logs)
	}
}

func TestClaimNextPriorityThenFIFO(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})

	// Enqueued in order with priorities 5, 3, 5, 1; claims must come
	// back 1, 3, then the two fives in enqueue order.
	var ids []string
	for _, priority := range []int{5, 3, 5, 1} {
		job, err := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{Priority: priority})
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, job.ID)
		time.Sleep(5 * time.Millisecond) // distinct created_at for the FIFO tie-break
	}

	wantOrder := []string{ids[3], ids[1], ids[0], ids[2]}
	for i, wantID := range wantOrder {
		job, err := q.ClaimNext(ctx, "worker-1")
		if err != nil {
			t.Fatalf("ClaimNext %d failed: %v", i, err)
		}
		if job == nil {
			t.Fatalf("ClaimNext %d returned no job", i)
		}
		if job.ID != wantID {
			t.Fatalf("claim %d = job %s (priority %d), want %s", i, job.ID, job.Priority, wantID)
		}
	}

	if job, _ := q.ClaimNext(ctx, "worker-1"); job != nil {
		t.Fatalf("claim on drained queue returned job %s", job.ID)
	}
}

func TestClaimNextAtomicUnderContention(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})
	job, err := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	winners := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			claimed, err := q.ClaimNext(ctx, "worker-"+string(rune('a'+n)))
			if err == nil && claimed != nil {
				winners <- claimed.WorkerID
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var count int
	for range winners {
		count++
	}
	if count != 1 {
		t.Fatalf("%d workers claimed the single job, want exactly 1", count)
	}

	claimed := reloadJob(t, db, job.ID)
	if claimed.Status != models.JobProcessing {
		t.Errorf("status = %s, want processing", claimed.Status)
	}
	if claimed.AttemptCount != 1 {
		t.Errorf("attempt_count = %d, want exactly 1 after a single claim", claimed.AttemptCount)
	}
	if claimed.StartedAt == nil || claimed.WorkerID == "" {
		t.Errorf("claim did not stamp started_at/worker_id: %+v", claimed)
	}
}

func TestClaimNextFiltersJobType(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})
	scheduled, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{Priority: 1})
	reactive, _ := q.Enqueue(ctx, post.ID, models.JobTypeReactive, EnqueueOptions{Priority: 9})

	job, err := q.ClaimNext(ctx, "worker-1", models.JobTypeReactive)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job == nil || job.ID != reactive.ID {
		t.Fatalf("filtered claim = %+v, want reactive job %s (scheduled was %s)", job, reactive.ID, scheduled.ID)
	}
}

func TestApplyRateLimitDefersQueuedJobs(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})
	key := post.RateLimitKey()

	first, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{RateLimitKey: key})
	second, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{RateLimitKey: key})
	other, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{RateLimitKey: "other_key"})

	if err := q.ApplyRateLimit(ctx, key, 10); err != nil {
		t.Fatalf("ApplyRateLimit failed: %v", err)
	}

	for _, id := range []string{first.ID, second.ID} {
		job := reloadJob(t, db, id)
		if job.RateLimitUntil == nil || !job.RateLimitUntil.After(time.Now()) {
			t.Fatalf("job %s rate_limit_until = %v, want future timestamp", id, job.RateLimitUntil)
		}
	}
	if job := reloadJob(t, db, other.ID); job.RateLimitUntil != nil {
		t.Fatalf("job with different key was deferred")
	}

	// Only the unaffected key remains claimable
	job, err := q.ClaimNext(ctx, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job == nil || job.ID != other.ID {
		t.Fatalf("claim during cooldown = %+v, want job %s", job, other.ID)
	}
	if job, _ := q.ClaimNext(ctx, "worker-1"); job != nil {
		t.Fatalf("rate-limited job %s was claimed during cooldown", job.ID)
	}
}

func TestScheduleRetryClearsRateLimitAndDefers(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})
	job, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{RateLimitKey: post.RateLimitKey()})

	claimed, err := q.ClaimNext(ctx, "worker-1")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v (job %v)", err, claimed)
	}

	if err := q.ScheduleRetry(ctx, job.ID, 30); err != nil {
		t.Fatalf("ScheduleRetry failed: %v", err)
	}

	retried := reloadJob(t, db, job.ID)
	if retried.Status != models.JobQueued {
		t.Errorf("status = %s, want queued", retried.Status)
	}
	if retried.RateLimitUntil != nil {
		t.Errorf("rate_limit_until = %v, want cleared", retried.RateLimitUntil)
	}
	if retried.NextRetryAt == nil {
		t.Fatalf("next_retry_at not set")
	}
	within(t, *retried.NextRetryAt, time.Now().Add(30*time.Minute), time.Minute, "next_retry_at")

	// Not claimable until the retry time arrives
	if job, _ := q.ClaimNext(ctx, "worker-1"); job != nil {
		t.Fatalf("job with future next_retry_at was claimed")
	}

	var logs []models.PublishingLog
	if err := db.Where("job_id = ? AND event = ?", job.ID, models.LogEventRetried).Find(&logs).Error; err != nil {
		t.Fatalf("failed to load logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("retried log entries = %d, want 1", len(logs))
	}
}

func TestCompleteRecordsOutcome(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})

	t.Run("failure", func(t *testing.T) {
		job, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
		if _, err := q.ClaimNext(ctx, "worker-1"); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}

		err := q.Complete(ctx, job.ID, false, &JobError{Message: "boom", Code: "PUBLISH_ERROR"})
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		failed := reloadJob(t, db, job.ID)
		if failed.Status != models.JobFailed {
			t.Errorf("status = %s, want failed", failed.Status)
		}
		if failed.CompletedAt == nil {
			t.Errorf("completed_at not stamped")
		}
		if failed.ErrorMessage != "boom" || failed.ErrorCode != "PUBLISH_ERROR" {
			t.Errorf("error fields = %q/%q, want boom/PUBLISH_ERROR", failed.ErrorMessage, failed.ErrorCode)
		}

		// completed/failed is reachable only from processing
		if err := q.Complete(ctx, job.ID, true, nil); err == nil {
			t.Errorf("Complete on a terminal job succeeded, want error")
		}
	})

	t.Run("success", func(t *testing.T) {
		job, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
		if _, err := q.ClaimNext(ctx, "worker-1"); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}

		if err := q.Complete(ctx, job.ID, true, nil); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if got := reloadJob(t, db, job.ID); got.Status != models.JobCompleted {
			t.Errorf("status = %s, want completed", got.Status)
		}
	})
}

func TestCancelOnlyQueuedJobs(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})

	job, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
	if err := q.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := reloadJob(t, db, job.ID); got.Status != models.JobCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if err := q.Cancel(ctx, job.ID); err == nil {
		t.Fatalf("second Cancel succeeded, want error")
	}

	claimed, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
	if _, err := q.ClaimNext(ctx, "worker-1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := q.Cancel(ctx, claimed.ID); err == nil {
		t.Fatalf("Cancel on a processing job succeeded, want error")
	}
}

func TestJobsForPostNewestFirst(t *testing.T) {
	db := newTestDB(t)
	q := NewQueue(db, testLogger())
	ctx := context.Background()

	post := createPost(t, db, &models.Post{})
	first, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})
	time.Sleep(5 * time.Millisecond)
	second, _ := q.Enqueue(ctx, post.ID, models.JobTypeScheduled, EnqueueOptions{})

	jobs, err := q.JobsForPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("JobsForPost failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatalf("order = [%s %s], want newest first [%s %s]", jobs[0].ID, jobs[1].ID, second.ID, first.ID)
	}
}
