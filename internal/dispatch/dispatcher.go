package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"priceowl/crawlworker/internal/extractor"
	"priceowl/crawlworker/internal/job"
	"priceowl/crawlworker/internal/retailer"
	"priceowl/crawlworker/logger"
	"priceowl/crawlworker/pkg/metrics"
)

// Skip reasons reported for retailers excluded from a dispatch run
const (
	SkipDisabled            = "disabled"
	SkipPaused              = "paused"
	SkipNoBinding           = "no_binding"
	SkipUnresolvableBinding = "unresolvable_binding"
)

// Options tunes a single dispatch run
type Options struct {
	// Queue overrides the default queue name
	Queue string
	// Delay is a base delay applied before the per-URL stagger
	Delay time.Duration
	// Sync executes jobs inline instead of enqueueing them
	Sync bool
	// UseUnlocker routes the run's fetches through the unlocker adapter
	UseUnlocker bool
}

// Report summarizes a dispatch run
type Report struct {
	RunID      string
	Dispatched map[string]int    // slug -> jobs emitted
	Skipped    map[string]string // slug -> reason
}

// Total returns the number of jobs emitted across all retailers
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Dispatched {
		n += c
	}
	return n
}

// Dispatcher fans a crawl run out into per-URL jobs. Each eligible
// retailer contributes its extractor set's entry points, staggered so a
// burst of dispatches does not hammer one retailer.
type Dispatcher struct {
	retailers    retailer.Store
	registry     *extractor.Registry
	queue        job.Queue
	executor     *job.Executor
	defaultQueue string
	stagger      time.Duration
	log          *logger.Logger
}

// New creates a dispatcher. The executor may be nil when sync dispatch is
// never used.
func New(retailers retailer.Store, registry *extractor.Registry, queue job.Queue, executor *job.Executor, defaultQueue string, stagger time.Duration) *Dispatcher {
	return &Dispatcher{
		retailers:    retailers,
		registry:     registry,
		queue:        queue,
		executor:     executor,
		defaultQueue: defaultQueue,
		stagger:      stagger,
		log:          logger.ForComponent("dispatcher"),
	}
}

// DispatchAll emits jobs for every eligible retailer. Ineligible retailers
// are skipped with a reason, never an error.
func (d *Dispatcher) DispatchAll(ctx context.Context, opts Options) (*Report, error) {
	retailers, err := d.retailers.List(ctx)
	if err != nil {
		return nil, err
	}

	report := newReport()
	for _, r := range retailers {
		if err := d.dispatchOne(ctx, r, opts, report); err != nil {
			return report, err
		}
	}

	d.log.Info().
		Str("run_id", report.RunID).
		Int("jobs", report.Total()).
		Int("skipped", len(report.Skipped)).
		Msg("Dispatch run completed")
	return report, nil
}

// DispatchRetailer emits jobs for a single retailer by slug. An unknown
// slug is an error; an ineligible retailer is reported as skipped.
func (d *Dispatcher) DispatchRetailer(ctx context.Context, slug string, opts Options) (*Report, error) {
	r, err := d.retailers.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	report := newReport()
	if err := d.dispatchOne(ctx, r, opts, report); err != nil {
		return report, err
	}
	return report, nil
}

func newReport() *Report {
	return &Report{
		RunID:      uuid.NewString(),
		Dispatched: make(map[string]int),
		Skipped:    make(map[string]string),
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, r *retailer.Retailer, opts Options, report *Report) error {
	if reason, detail := skipReason(r); reason != "" {
		d.skip(report, r, reason, detail)
		return nil
	}

	set, err := d.registry.Resolve(r.ExtractorKey)
	if err != nil {
		d.log.WithError(err).WithField("retailer", r.Slug).
			Warn().Msg("Retailer has an unresolvable extractor binding")
		d.skip(report, r, SkipUnresolvableBinding, SkipUnresolvableBinding)
		return nil
	}

	queue := opts.Queue
	if queue == "" {
		queue = d.defaultQueue
	}

	// No entry points means nothing to crawl; that is a valid binding, not
	// an error.
	for i, url := range set.EntryPoints {
		j := job.NewCrawlJob(r.Slug, r.ExtractorKey, url, queue)
		j.RunID = report.RunID
		j.UseUnlocker = opts.UseUnlocker
		j.Delay = opts.Delay + time.Duration(i)*d.stagger

		if opts.Sync {
			if d.executor == nil {
				return fmt.Errorf("sync dispatch requested but no executor is wired")
			}
			// Inline runs take failures in stride the same way workers do:
			// the outcome lands in the retailer's health record.
			if err := d.executor.Execute(ctx, j); err != nil {
				d.log.WithError(err).WithField("retailer", r.Slug).
					Warn().Msg("Inline job failed")
			}
		} else {
			if err := d.queue.Push(ctx, j); err != nil {
				return fmt.Errorf("failed to enqueue job for %s: %w", r.Slug, err)
			}
		}

		report.Dispatched[r.Slug]++
		if metrics.JobsDispatched != nil {
			metrics.JobsDispatched.WithLabelValues(r.Slug, queue).Inc()
		}
	}

	if report.Dispatched[r.Slug] > 0 {
		if err := d.retailers.TouchLastCrawled(ctx, r.Slug); err != nil {
			d.log.WithError(err).WithField("retailer", r.Slug).
				Warn().Msg("Failed to stamp last crawl time")
		}
	}
	return nil
}

// skipReason classifies an ineligible retailer. The reason is a fixed
// label safe for metrics; the detail is the human-readable form stored
// in the report, carrying the pause expiry when one is set.
func skipReason(r *retailer.Retailer) (reason, detail string) {
	switch {
	case r.Status == retailer.StatusDisabled:
		return SkipDisabled, SkipDisabled
	case r.Status == retailer.StatusPaused:
		if r.PauseExpiry != nil {
			return SkipPaused, fmt.Sprintf("paused_until=%s", r.PauseExpiry.Format(time.RFC3339))
		}
		return SkipPaused, SkipPaused
	case r.ExtractorKey == "":
		return SkipNoBinding, SkipNoBinding
	default:
		return "", ""
	}
}

func (d *Dispatcher) skip(report *Report, r *retailer.Retailer, reason, detail string) {
	report.Skipped[r.Slug] = detail
	if metrics.RetailersSkipped != nil {
		metrics.RetailersSkipped.WithLabelValues(reason).Inc()
	}
	d.log.Debug().
		Str("retailer", r.Slug).
		Str("reason", detail).
		Msg("Retailer skipped")
}
