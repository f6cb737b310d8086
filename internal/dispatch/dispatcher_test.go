package dispatch

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
)

type staticAdapter struct {
	html string
}

func (a *staticAdapter) Fetch(_ context.Context, _ string) (io.Reader, error) {
	return strings.NewReader(a.html), nil
}

func testRegistry() *extractor.Registry {
	registry := extractor.NewRegistry()
	extractor.RegisterProfile(registry, extractor.Profile{
		Slug:    "shoptest",
		BaseURL: "https://shoptest.example",
		EntryPoints: []string{
			"https://shoptest.example/products/food",
			"https://shoptest.example/products/cleaning",
			"https://shoptest.example/products/health",
		},
		ListingURLPatterns: []string{"/products/"},
		ProductURLPatterns: []string{"/product/"},
		Listing: extractor.ListingSelectors{
			Item: "div.tile",
			Link: []string{"a"},
		},
		Product: extractor.ProductSelectors{
			Title: []string{"h1"},
			Price: []string{"span.price"},
		},
	})
	extractor.RegisterProfile(registry, extractor.Profile{
		Slug:    "emptyshop",
		BaseURL: "https://emptyshop.example",
		Product: extractor.ProductSelectors{Title: []string{"h1"}},
	})
	return registry
}

func newStore(t *testing.T, retailers ...*retailer.Retailer) *retailer.MemoryStore {
	t.Helper()
	store := retailer.NewMemoryStore(retailer.Thresholds{Degraded: 3, Failed: 8})
	for _, r := range retailers {
		require.NoError(t, store.Create(context.Background(), r))
	}
	return store
}

func TestDispatchAllEmitsEntryPoints(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		&retailer.Retailer{Name: "Shop Test", Slug: "shoptest", ExtractorKey: "shoptest"},
	)
	queue := job.NewMemoryQueue()
	d := New(store, testRegistry(), queue, nil, "default", 0)

	report, err := d.DispatchAll(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 3, report.Dispatched["shoptest"])
	assert.NotEmpty(t, report.RunID)

	size, err := queue.Size(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	first, err := queue.Pop(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "https://shoptest.example/products/food", first.URL)
	assert.Equal(t, report.RunID, first.RunID)
	assert.Equal(t, "shoptest", first.ExtractorKey)

	r, err := store.GetBySlug(ctx, "shoptest")
	require.NoError(t, err)
	assert.NotNil(t, r.LastCrawledAt)
}

func TestDispatchStaggersJobs(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		&retailer.Retailer{Name: "Shop Test", Slug: "shoptest", ExtractorKey: "shoptest"},
	)
	queue := job.NewMemoryQueue()
	d := New(store, testRegistry(), queue, nil, "default", 1500*time.Millisecond)

	_, err := d.DispatchAll(ctx, Options{Delay: time.Minute})
	require.NoError(t, err)

	// First entry point carries only the base delay, later ones wait longer
	first, err := queue.Pop(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, first, "staggered jobs must not be ready immediately")

	size, err := queue.Size(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestDispatchSkipsIneligibleRetailers(t *testing.T) {
	ctx := context.Background()
	until := time.Now().Add(time.Hour)
	store := newStore(t,
		&retailer.Retailer{Name: "A", Slug: "active-shop", ExtractorKey: "shoptest"},
		&retailer.Retailer{Name: "B", Slug: "disabled-shop", ExtractorKey: "shoptest", Status: retailer.StatusDisabled},
		&retailer.Retailer{Name: "C", Slug: "paused-shop", ExtractorKey: "shoptest", Status: retailer.StatusPaused, PauseExpiry: &until},
		&retailer.Retailer{Name: "D", Slug: "unbound-shop"},
		&retailer.Retailer{Name: "E", Slug: "broken-shop", ExtractorKey: "gone"},
	)
	queue := job.NewMemoryQueue()
	d := New(store, testRegistry(), queue, nil, "default", 0)

	report, err := d.DispatchAll(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Dispatched["active-shop"])
	assert.Equal(t, SkipDisabled, report.Skipped["disabled-shop"])
	// A timed pause surfaces when the retailer comes back
	assert.Equal(t, "paused_until="+until.Format(time.RFC3339), report.Skipped["paused-shop"])
	assert.Equal(t, SkipNoBinding, report.Skipped["unbound-shop"])
	assert.Equal(t, SkipUnresolvableBinding, report.Skipped["broken-shop"])
	assert.Equal(t, 3, report.Total())
}

func TestDispatchDegradedRetailerStillRuns(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		&retailer.Retailer{Name: "Shop", Slug: "shoptest", ExtractorKey: "shoptest",
			Status: retailer.StatusDegraded, ConsecutiveFailures: 4},
	)
	d := New(store, testRegistry(), job.NewMemoryQueue(), nil, "default", 0)

	report, err := d.DispatchAll(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Dispatched["shoptest"])
}

func TestDispatchRetailerUnknownSlug(t *testing.T) {
	d := New(newStore(t), testRegistry(), job.NewMemoryQueue(), nil, "default", 0)
	_, err := d.DispatchRetailer(context.Background(), "nosuch", Options{})
	assert.ErrorIs(t, err, retailer.ErrNotFound)
}

func TestDispatchZeroEntryPoints(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		&retailer.Retailer{Name: "Empty", Slug: "emptyshop", ExtractorKey: "emptyshop"},
	)
	d := New(store, testRegistry(), job.NewMemoryQueue(), nil, "default", 0)

	report, err := d.DispatchRetailer(ctx, "emptyshop", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
	assert.Empty(t, report.Skipped)
}

func TestDispatchQueueOverride(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		&retailer.Retailer{Name: "Shop", Slug: "shoptest", ExtractorKey: "shoptest"},
	)
	queue := job.NewMemoryQueue()
	d := New(store, testRegistry(), queue, nil, "default", 0)

	_, err := d.DispatchRetailer(ctx, "shoptest", Options{Queue: "priority"})
	require.NoError(t, err)

	size, err := queue.Size(ctx, "priority")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	size, err = queue.Size(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestDispatchSyncBuiltinRetailer(t *testing.T) {
	ctx := context.Background()
	registry := extractor.NewRegistry()
	extractor.RegisterBuiltins(registry)

	bmSet, err := registry.Resolve("bm")
	require.NoError(t, err)
	require.Len(t, bmSet.EntryPoints, 4)

	store := newStore(t,
		&retailer.Retailer{Name: "B&M", Slug: "bm", ExtractorKey: "bm"},
	)
	letters := job.NewMemoryDeadLetterStore()
	collector := ingest.NewCollector()
	executor := job.NewExecutor(job.ExecutorConfig{
		Registry:  registry,
		Retailers: store,
		Stats:     stats.NewMemoryStore(),
		Listings:  collector,
		Reviews:   collector,
		Notifier:  collector,
		Standard: &staticAdapter{html: `<html><body>
			<div class="product-list"><article class="product-tile">
				<a class="product-tile__link" href="/product/example">Example</a>
			</article></div>
		</body></html>`},
		DeadLetters:  letters,
		FetchTimeout: 5 * time.Second,
	})
	d := New(store, registry, job.NewMemoryQueue(), executor, "default", 0)

	report, err := d.DispatchRetailer(ctx, "bm", Options{Sync: true})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Dispatched["bm"])

	r, err := store.GetBySlug(ctx, "bm")
	require.NoError(t, err)
	assert.NotNil(t, r.LastCrawledAt)
	assert.Equal(t, retailer.StatusActive, r.Status)

	parked, err := letters.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, parked)
}

func TestDispatchSyncExecutesInline(t *testing.T) {
	ctx := context.Background()
	store := newStore(t,
		&retailer.Retailer{Name: "Shop", Slug: "shoptest", ExtractorKey: "shoptest"},
	)
	collector := ingest.NewCollector()
	executor := job.NewExecutor(job.ExecutorConfig{
		Registry:  testRegistry(),
		Retailers: store,
		Stats:     stats.NewMemoryStore(),
		Listings:  collector,
		Reviews:   collector,
		Notifier:  collector,
		Standard: &staticAdapter{html: `<html><body>
			<div class="tile"><a href="/product/alpha">Alpha</a></div>
		</body></html>`},
		DeadLetters:  job.NewMemoryDeadLetterStore(),
		FetchTimeout: 5 * time.Second,
	})
	queue := job.NewMemoryQueue()
	d := New(store, testRegistry(), queue, executor, "default", 0)

	report, err := d.DispatchRetailer(ctx, "shoptest", Options{Sync: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total())

	// Inline mode never touches the queue
	size, err := queue.Size(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	// One listing per entry point page
	assert.Len(t, collector.Listings, 3)
}
