package worker

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceowl/crawlworker/internal/extractor"
	"priceowl/crawlworker/internal/ingest"
	"priceowl/crawlworker/internal/job"
	"priceowl/crawlworker/internal/retailer"
	"priceowl/crawlworker/internal/stats"
	apperrors "priceowl/crawlworker/pkg/errors"
)

type fakeAdapter struct {
	html string
	err  error
}

func (a *fakeAdapter) Fetch(_ context.Context, _ string) (io.Reader, error) {
	if a.err != nil {
		return nil, a.err
	}
	return strings.NewReader(a.html), nil
}

func poolFixture(t *testing.T, adapter *fakeAdapter) (*Pool, *job.MemoryQueue, *ingest.Collector, *job.MemoryDeadLetterStore) {
	t.Helper()

	registry := extractor.NewRegistry()
	extractor.RegisterProfile(registry, extractor.Profile{
		Slug:               "shoptest",
		BaseURL:            "https://shoptest.example",
		ProductURLPatterns: []string{"/product/"},
		Product: extractor.ProductSelectors{
			Title: []string{"h1"},
			Price: []string{"span.price"},
		},
	})

	store := retailer.NewMemoryStore(retailer.Thresholds{Degraded: 3, Failed: 8})
	require.NoError(t, store.Create(context.Background(), &retailer.Retailer{
		Name: "Shop Test", Slug: "shoptest", ExtractorKey: "shoptest",
	}))

	collector := ingest.NewCollector()
	letters := job.NewMemoryDeadLetterStore()
	executor := job.NewExecutor(job.ExecutorConfig{
		Registry:     registry,
		Retailers:    store,
		Stats:        stats.NewMemoryStore(),
		Listings:     collector,
		Reviews:      collector,
		Notifier:     collector,
		Standard:     adapter,
		DeadLetters:  letters,
		FetchTimeout: time.Second,
	})

	queue := job.NewMemoryQueue()
	pool := NewPool(queue, executor, nil, []string{"default"}, 2, 10*time.Millisecond)
	return pool, queue, collector, letters
}

func TestPoolDrainsQueue(t *testing.T) {
	adapter := &fakeAdapter{html: `<html><body><h1>Widget</h1><span class="price">£2.50</span></body></html>`}
	pool, queue, collector, _ := poolFixture(t, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		j := job.NewCrawlJob("shoptest", "shoptest", "https://shoptest.example/product/widget", "default")
		require.NoError(t, queue.Push(ctx, j))
	}

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		size, err := queue.Size(ctx, "default")
		return err == nil && size == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after context cancellation")
	}

	assert.Len(t, collector.Products, 5)
}

func TestPoolSurvivesFailingJobs(t *testing.T) {
	adapter := &fakeAdapter{err: apperrors.NewFetch("", "request failed", nil)}
	pool, queue, _, letters := poolFixture(t, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		j := job.NewCrawlJob("shoptest", "shoptest", "https://shoptest.example/product/widget", "default")
		require.NoError(t, queue.Push(ctx, j))
	}

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		parked, err := letters.List(ctx, 0)
		return err == nil && len(parked) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after context cancellation")
	}
}

func TestPoolStopsOnCancelledContext(t *testing.T) {
	pool, _, _, _ := poolFixture(t, &fakeAdapter{html: "<html></html>"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop with a cancelled context")
	}
}
