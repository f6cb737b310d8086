package retailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testThresholds() Thresholds {
	return Thresholds{Degraded: 3, Failed: 8}
}

func newTestStore(t *testing.T) (*MemoryStore, *Retailer) {
	t.Helper()
	store := NewMemoryStore(testThresholds())
	r := &Retailer{
		Name:         "B&M",
		Slug:         "bm",
		BaseURL:      "https://www.bmstores.co.uk",
		ExtractorKey: "bm",
		RateLimit:    time.Second,
	}
	assert.NoError(t, store.Create(context.Background(), r))
	return store, r
}

func TestEligibility(t *testing.T) {
	r := &Retailer{Slug: "bm", Status: StatusActive, ExtractorKey: "bm"}
	assert.True(t, r.Eligible())

	r.Status = StatusDegraded
	assert.True(t, r.Eligible())
	r.Status = StatusFailed
	assert.True(t, r.Eligible())

	r.Status = StatusPaused
	assert.False(t, r.Eligible())
	r.Status = StatusDisabled
	assert.False(t, r.Eligible())

	r.Status = StatusActive
	r.ExtractorKey = ""
	assert.False(t, r.Eligible())
}

func TestPauseAndAutoResume(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	until := time.Now().Add(time.Hour)
	r, err := store.Pause(ctx, "bm", until)
	assert.NoError(t, err)
	assert.Equal(t, StatusPaused, r.Status)
	assert.WithinDuration(t, until, *r.PauseExpiry, time.Second)

	// Sweep before expiry must not resume
	slugs, err := store.ResumeExpired(ctx, time.Now())
	assert.NoError(t, err)
	assert.Empty(t, slugs)

	// Sweep at/after expiry resumes and clears the expiry
	slugs, err = store.ResumeExpired(ctx, until)
	assert.NoError(t, err)
	assert.Equal(t, []string{"bm"}, slugs)

	r, err = store.GetBySlug(ctx, "bm")
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, r.Status)
	assert.Nil(t, r.PauseExpiry)
}

func TestPauseGuard(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Disable(ctx, "bm")
	assert.NoError(t, err)

	// A disabled retailer cannot be paused; the guard rejects, not panics
	_, err = store.Pause(ctx, "bm", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Disabling twice is also a guard failure
	_, err = store.Disable(ctx, "bm")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = store.Pause(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnableResetsFailures(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.RecordFailure(ctx, "bm")
		assert.NoError(t, err)
	}
	r, err := store.Disable(ctx, "bm")
	assert.NoError(t, err)
	assert.Equal(t, 5, r.ConsecutiveFailures) // disable keeps the streak

	r, err = store.Enable(ctx, "bm")
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, 0, r.ConsecutiveFailures)
	assert.Nil(t, r.PauseExpiry)
}

func TestFailureStreakDegradesThenFails(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	var r *Retailer
	var err error
	for i := 1; i <= 8; i++ {
		r, err = store.RecordFailure(ctx, "bm")
		assert.NoError(t, err)
		assert.Equal(t, i, r.ConsecutiveFailures)
		switch {
		case i >= 8:
			assert.Equal(t, StatusFailed, r.Status, "streak %d", i)
		case i >= 3:
			assert.Equal(t, StatusDegraded, r.Status, "streak %d", i)
		default:
			assert.Equal(t, StatusActive, r.Status, "streak %d", i)
		}
	}

	// One success resets the streak and the status
	r, err = store.RecordSuccess(ctx, "bm")
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, r.Status)
	assert.Equal(t, 0, r.ConsecutiveFailures)
	assert.NotNil(t, r.LastCrawledAt)
}

func TestFailureWhilePausedKeepsStatus(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Pause(ctx, "bm", time.Now().Add(time.Hour))
	assert.NoError(t, err)

	// A straggler job report while paused counts the failure but does not
	// flip the status out from under the operator
	r, err := store.RecordFailure(ctx, "bm")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaused, r.Status)
	assert.Equal(t, 1, r.ConsecutiveFailures)
}

func TestConcurrentFailureReports(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, err := store.RecordFailure(ctx, "bm")
			assert.NoError(t, err)
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	r, err := store.GetBySlug(ctx, "bm")
	assert.NoError(t, err)
	assert.Equal(t, 10, r.ConsecutiveFailures)
	assert.Equal(t, StatusFailed, r.Status)
}

func TestTransitionAffordances(t *testing.T) {
	r := &Retailer{Status: StatusActive}
	assert.True(t, r.CanPause())
	assert.True(t, r.CanDisable())
	assert.False(t, r.CanResume())
	assert.False(t, r.CanEnable())

	r.Status = StatusPaused
	assert.True(t, r.CanResume())
	assert.True(t, r.CanDisable())
	assert.False(t, r.CanPause())

	r.Status = StatusDisabled
	assert.True(t, r.CanEnable())
	assert.False(t, r.CanDisable())
	assert.False(t, r.CanPause())
}
