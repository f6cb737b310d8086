package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceowl/crawlworker/internal/dispatch"
	"priceowl/crawlworker/internal/extractor"
	"priceowl/crawlworker/internal/fetch"
	"priceowl/crawlworker/internal/ingest"
	"priceowl/crawlworker/internal/job"
	"priceowl/crawlworker/internal/retailer"
	"priceowl/crawlworker/internal/stats"
)

const listingHTML = `<!DOCTYPE html>
<html>
<body>
	<h1 class="category">Cleaning</h1>
	<div class="grid">
		<article class="tile"><a href="/product/multi-surface-spray">Multi Surface Spray</a></article>
		<article class="tile"><a href="/product/dish-soap">Dish Soap</a></article>
	</div>
</body>
</html>`

const productHTML = `<!DOCTYPE html>
<html>
<head>
	<script type="application/ld+json">
	{
		"@type": "Product",
		"name": "Multi Surface Spray",
		"sku": "MSS-500",
		"brand": {"name": "Sparkle"},
		"offers": {"price": "2.49", "availability": "https://schema.org/InStock"}
	}
	</script>
</head>
<body>
	<h1>Multi Surface Spray 500ml</h1>
	<span class="price">£2.49</span>
	<div class="reviews">
		<div class="review">
			<span class="author">Jo</span>
			<span class="rating">5</span>
			<p class="body">Leaves no streaks.</p>
		</div>
	</div>
</body>
</html>`

// pipelineFixture wires a real HTTP server, real fetch adapter, and the
// in-memory collaborators into a working crawl pipeline.
type pipelineFixture struct {
	server    *httptest.Server
	store     *retailer.MemoryStore
	stats     *stats.MemoryStore
	collector *ingest.Collector
	letters   *job.MemoryDeadLetterStore
	queue     *job.MemoryQueue
	executor  *job.Executor
	d         *dispatch.Dispatcher
}

func newPipelineFixture(t *testing.T, handler http.Handler) *pipelineFixture {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry := extractor.NewRegistry()
	extractor.RegisterProfile(registry, extractor.Profile{
		Slug:               "corner-shop",
		BaseURL:            server.URL,
		EntryPoints:        []string{server.URL + "/products/cleaning"},
		ListingURLPatterns: []string{"/products/"},
		ProductURLPatterns: []string{"/product/"},
		ReviewURLPatterns:  []string{"/product/"},
		Listing: extractor.ListingSelectors{
			Item:     "article.tile",
			Link:     []string{"a"},
			Category: []string{"h1.category"},
		},
		Product: extractor.ProductSelectors{
			Title: []string{"h1"},
			Price: []string{"span.price"},
		},
		Review: extractor.ReviewSelectors{
			Item:   "div.review",
			Author: []string{"span.author"},
			Rating: []string{"span.rating"},
			Body:   []string{"p.body"},
		},
	})

	store := retailer.NewMemoryStore(retailer.Thresholds{Degraded: 3, Failed: 8})
	require.NoError(t, store.Create(context.Background(), &retailer.Retailer{
		Name:         "Corner Shop",
		Slug:         "corner-shop",
		BaseURL:      server.URL,
		ExtractorKey: "corner-shop",
	}))

	statStore := stats.NewMemoryStore()
	collector := ingest.NewCollector()
	letters := job.NewMemoryDeadLetterStore()
	queue := job.NewMemoryQueue()

	executor := job.NewExecutor(job.ExecutorConfig{
		Registry:     registry,
		Retailers:    store,
		Stats:        statStore,
		Listings:     collector,
		Reviews:      collector,
		Notifier:     collector,
		Standard:     fetch.NewStandardAdapter(5 * time.Second),
		DeadLetters:  letters,
		FetchTimeout: 5 * time.Second,
	})

	return &pipelineFixture{
		server:    server,
		store:     store,
		stats:     statStore,
		collector: collector,
		letters:   letters,
		queue:     queue,
		executor:  executor,
		d:         dispatch.New(store, registry, queue, executor, "default", 0),
	}
}

func shopHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/cleaning", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(listingHTML))
	})
	mux.HandleFunc("/product/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(productHTML))
	})
	return mux
}

func TestPipelineDiscoversAndExtracts(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, shopHandler())

	// Sync dispatch crawls the entry point inline
	report, err := f.d.DispatchRetailer(ctx, "corner-shop", dispatch.Options{Sync: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total())

	require.Len(t, f.collector.Listings, 2)
	assert.Equal(t, "Cleaning", f.collector.Listings[0].Category)

	// Follow a discovered listing the way a worker would
	detail := job.NewCrawlJob("corner-shop", "corner-shop", f.collector.Listings[0].URL, "default")
	require.NoError(t, f.executor.Execute(ctx, detail))

	require.Len(t, f.collector.Products, 1)
	product := f.collector.Products[0]
	assert.Equal(t, "Multi Surface Spray", product.Title)
	assert.Equal(t, "MSS-500", product.ExternalID)
	assert.Equal(t, "Sparkle", product.Brand)
	require.NotNil(t, product.Price)
	assert.Equal(t, int64(249), *product.Price)
	assert.True(t, product.InStock)

	require.Len(t, f.collector.Reviews, 1)
	assert.Equal(t, "Jo", f.collector.Reviews[0].Author)
	assert.Equal(t, 5.0, f.collector.Reviews[0].Rating)

	r, err := f.store.GetBySlug(ctx, "corner-shop")
	require.NoError(t, err)
	assert.Equal(t, retailer.StatusActive, r.Status)
	assert.NotNil(t, r.LastCrawledAt)

	stat, err := f.stats.ForDate(ctx, r.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stat.CrawlsStarted)
	assert.Equal(t, int64(2), stat.CrawlsCompleted)
	assert.Equal(t, int64(2), stat.ListingsDiscovered)
	assert.Equal(t, int64(1), stat.DetailsExtracted)
}

func TestPipelineAsyncDispatchThroughQueue(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, shopHandler())

	report, err := f.d.DispatchRetailer(ctx, "corner-shop", dispatch.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total())

	j, err := f.queue.Pop(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, j)
	require.NoError(t, f.executor.Execute(ctx, *j))

	assert.Len(t, f.collector.Listings, 2)
}

func TestPipelineServerErrorsFeedHealth(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))

	for i := 0; i < 3; i++ {
		_, err := f.d.DispatchRetailer(ctx, "corner-shop", dispatch.Options{Sync: true})
		require.NoError(t, err, "sync dispatch reports job failures through health, not errors")
	}

	r, err := f.store.GetBySlug(ctx, "corner-shop")
	require.NoError(t, err)
	assert.Equal(t, retailer.StatusDegraded, r.Status)
	assert.Equal(t, 3, r.ConsecutiveFailures)

	letters, err := f.letters.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, letters, 3)

	require.Len(t, f.collector.StatusChanges, 1)
	assert.Equal(t, string(retailer.StatusDegraded), f.collector.StatusChanges[0].To)
}
