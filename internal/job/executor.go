package job

import (
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"priceowl/crawlworker/internal/extractor"
	"priceowl/crawlworker/internal/fetch"
	"priceowl/crawlworker/internal/ingest"
	"priceowl/crawlworker/internal/record"
	"priceowl/crawlworker/internal/retailer"
	"priceowl/crawlworker/internal/stats"
	"priceowl/crawlworker/logger"
	apperrors "priceowl/crawlworker/pkg/errors"
	"priceowl/crawlworker/pkg/metrics"
)

// Executor runs a single crawl job end to end: pace, fetch, parse,
// extract, ingest, and report the outcome to the retailer's health record.
// A failed job never takes the worker down with it.
type Executor struct {
	registry    *extractor.Registry
	retailers   retailer.Store
	stats       stats.Store
	listings    ingest.ListingIngester
	reviews     ingest.ReviewIngester
	notifier    ingest.StatusNotifier
	standard    fetch.Adapter
	unlocker    fetch.Adapter
	pacer       *fetch.Pacer
	deadLetters DeadLetterStore
	timeout     time.Duration
}

// ExecutorConfig bundles the executor's collaborators
type ExecutorConfig struct {
	Registry     *extractor.Registry
	Retailers    retailer.Store
	Stats        stats.Store
	Listings     ingest.ListingIngester
	Reviews      ingest.ReviewIngester
	Notifier     ingest.StatusNotifier
	Standard     fetch.Adapter
	Unlocker     fetch.Adapter
	Pacer        *fetch.Pacer
	DeadLetters  DeadLetterStore
	FetchTimeout time.Duration
}

// NewExecutor creates an executor from its collaborators
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Pacer == nil {
		cfg.Pacer = fetch.NewPacer(nil)
	}
	return &Executor{
		registry:    cfg.Registry,
		retailers:   cfg.Retailers,
		stats:       cfg.Stats,
		listings:    cfg.Listings,
		reviews:     cfg.Reviews,
		notifier:    cfg.Notifier,
		standard:    cfg.Standard,
		unlocker:    cfg.Unlocker,
		pacer:       cfg.Pacer,
		deadLetters: cfg.DeadLetters,
		timeout:     cfg.FetchTimeout,
	}
}

// Execute runs one job. Configuration problems (unknown retailer, broken
// extractor binding) are logged and skipped without touching the failure
// streak or the dead-letter store; everything else that goes wrong counts
// as a crawl failure.
func (e *Executor) Execute(ctx context.Context, j CrawlJob) error {
	log := logger.ForRetailer(j.RetailerSlug).WithFields(logger.Fields{
		"job_id": j.ID,
		"url":    j.URL,
	})

	r, err := e.retailers.GetBySlug(ctx, j.RetailerSlug)
	if err != nil {
		if errors.Is(err, retailer.ErrNotFound) {
			log.Warn().Msg("Job references unknown retailer, skipping")
			if metrics.RetailersSkipped != nil {
				metrics.RetailersSkipped.WithLabelValues("unknown_retailer").Inc()
			}
			return nil
		}
		return err
	}

	key := j.ExtractorKey
	if key == "" {
		key = r.ExtractorKey
	}
	set, err := e.registry.Resolve(key)
	if err != nil {
		cfgErr := apperrors.NewConfiguration(j.RetailerSlug, "extractor binding is unresolvable", err)
		log.WithError(cfgErr).Warn().Msg("Skipping job with broken extractor binding")
		if metrics.RetailersSkipped != nil {
			metrics.RetailersSkipped.WithLabelValues("unresolvable_binding").Inc()
		}
		return nil
	}

	if err := e.stats.Increment(ctx, r.ID, stats.CrawlsStarted, 1); err != nil {
		log.WithError(err).Warn().Msg("Failed to record crawl start")
	}

	start := time.Now()
	err = e.crawl(ctx, j, r, set, log)
	if metrics.CrawlDuration != nil {
		metrics.CrawlDuration.WithLabelValues(j.RetailerSlug).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		e.reportFailure(ctx, j, r, err, log)
		return err
	}

	e.reportSuccess(ctx, j, r, log)
	return nil
}

// crawl is the fallible middle of a job: everything it returns an error
// for counts as a crawl failure.
func (e *Executor) crawl(ctx context.Context, j CrawlJob, r *retailer.Retailer, set *extractor.Set, log *logger.Logger) error {
	if err := e.pacer.Wait(ctx, r.Slug, r.RateLimit); err != nil {
		return apperrors.NewFetch(r.Slug, "pacing interrupted", err)
	}

	adapter := e.standard
	if j.UseUnlocker && e.unlocker != nil {
		adapter = e.unlocker
	}

	fetchCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	body, err := adapter.Fetch(fetchCtx, j.URL)
	if err != nil {
		return withRetailer(err, r.Slug)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return apperrors.NewParse(r.Slug, "failed to parse document", err)
	}

	var listings, products, reviews int

	if le := set.ListingFor(j.URL); le != nil {
		refs, err := le.Extract(doc, j.URL)
		if err != nil {
			return apperrors.NewParse(r.Slug, "listing extraction failed", err)
		}
		for _, ref := range refs {
			if err := e.listings.IngestListing(ctx, r.ID, ref); err != nil {
				return withRetailer(err, r.Slug)
			}
			countRecord(j.RetailerSlug, record.KindListing, ref.Metadata.Strategy)
		}
		listings = len(refs)
	}

	if pe := set.ProductFor(j.URL); pe != nil {
		recs, err := pe.Extract(doc, j.URL)
		if err != nil {
			return apperrors.NewParse(r.Slug, "product extraction failed", err)
		}
		for _, rec := range recs {
			if err := e.listings.IngestProduct(ctx, r.ID, rec); err != nil {
				return withRetailer(err, r.Slug)
			}
			countRecord(j.RetailerSlug, record.KindProduct, rec.Metadata.Strategy)
		}
		products = len(recs)
	}

	if re := set.ReviewFor(j.URL); re != nil {
		recs, err := re.Extract(doc, j.URL)
		if err != nil {
			return apperrors.NewParse(r.Slug, "review extraction failed", err)
		}
		for _, rec := range recs {
			if err := e.reviews.IngestReview(ctx, r.ID, rec); err != nil {
				return withRetailer(err, r.Slug)
			}
			countRecord(j.RetailerSlug, record.KindReview, rec.Metadata.Strategy)
		}
		reviews = len(recs)
	}

	if listings > 0 {
		if err := e.stats.Increment(ctx, r.ID, stats.ListingsDiscovered, int64(listings)); err != nil {
			log.WithError(err).Warn().Msg("Failed to record discovered listings")
		}
	}
	if products > 0 {
		if err := e.stats.Increment(ctx, r.ID, stats.DetailsExtracted, int64(products)); err != nil {
			log.WithError(err).Warn().Msg("Failed to record extracted details")
		}
	}

	log.Info().
		Int("listings", listings).
		Int("products", products).
		Int("reviews", reviews).
		Msg("Crawl completed")
	return nil
}

func (e *Executor) reportSuccess(ctx context.Context, j CrawlJob, before *retailer.Retailer, log *logger.Logger) {
	if metrics.CrawlsTotal != nil {
		metrics.CrawlsTotal.WithLabelValues(j.RetailerSlug, "success").Inc()
	}
	if err := e.stats.Increment(ctx, before.ID, stats.CrawlsCompleted, 1); err != nil {
		log.WithError(err).Warn().Msg("Failed to record crawl completion")
	}

	after, err := e.retailers.RecordSuccess(ctx, j.RetailerSlug)
	if err != nil {
		log.WithError(err).Warn().Msg("Failed to record crawl success")
		return
	}
	e.notifyIfChanged(ctx, before, after, "crawl succeeded", log)
}

func (e *Executor) reportFailure(ctx context.Context, j CrawlJob, before *retailer.Retailer, cause error, log *logger.Logger) {
	log.WithError(cause).Error().Msg("Crawl failed")
	if metrics.CrawlsTotal != nil {
		metrics.CrawlsTotal.WithLabelValues(j.RetailerSlug, "failure").Inc()
	}
	if err := e.stats.Increment(ctx, before.ID, stats.CrawlsFailed, 1); err != nil {
		log.WithError(err).Warn().Msg("Failed to record crawl failure")
	}

	if e.deadLetters != nil {
		letter := DeadLetter{
			ID:       uuid.NewString(),
			Job:      j,
			Reason:   cause.Error(),
			FailedAt: time.Now().UTC(),
		}
		if err := e.deadLetters.Save(ctx, letter); err != nil {
			log.WithError(err).Error().Msg("Failed to save dead letter")
		} else if metrics.DeadLetters != nil {
			metrics.DeadLetters.Inc()
		}
	}

	var crawlErr *apperrors.CrawlError
	if errors.As(cause, &crawlErr) && !crawlErr.CountsAsFailure() {
		return
	}

	after, err := e.retailers.RecordFailure(ctx, j.RetailerSlug)
	if err != nil {
		log.WithError(err).Warn().Msg("Failed to record failure streak")
		return
	}
	e.notifyIfChanged(ctx, before, after, "failure streak threshold crossed", log)
}

func (e *Executor) notifyIfChanged(ctx context.Context, before, after *retailer.Retailer, reason string, log *logger.Logger) {
	if e.notifier == nil || before.Status == after.Status {
		return
	}
	change := ingest.StatusChange{
		Slug:   after.Slug,
		From:   string(before.Status),
		To:     string(after.Status),
		Reason: reason,
	}
	if err := e.notifier.NotifyStatusChange(ctx, change); err != nil {
		log.WithError(err).Warn().Msg("Failed to publish status change")
	}
}

// withRetailer stamps the retailer slug onto crawl errors raised below the
// retailer layer
func withRetailer(err error, slug string) error {
	var crawlErr *apperrors.CrawlError
	if errors.As(err, &crawlErr) && crawlErr.Retailer == "" {
		crawlErr.Retailer = slug
	}
	return err
}

func countRecord(slug string, kind record.Kind, strategy record.Strategy) {
	if metrics.RecordsExtracted == nil {
		return
	}
	metrics.RecordsExtracted.WithLabelValues(slug, string(kind), string(strategy)).Inc()
}
