package job

import (
	"time"

	"github.com/google/uuid"
)

// CrawlJob is one unit of fetch-then-extract work for a single URL. Jobs
// are transient messages: created by the dispatcher, consumed once by a
// worker. Delivery is at-least-once; everything downstream is idempotent
// on external ids.
type CrawlJob struct {
	ID           string        `json:"id"`
	RetailerSlug string        `json:"retailer_slug"`
	ExtractorKey string        `json:"extractor_key"`
	URL          string        `json:"url"`
	RunID        string        `json:"run_id,omitempty"`
	UseUnlocker  bool          `json:"use_unlocker,omitempty"`
	Queue        string        `json:"queue"`
	Delay        time.Duration `json:"delay,omitempty"`
	EnqueuedAt   time.Time     `json:"enqueued_at"`
}

// NewCrawlJob creates a job with a fresh id and enqueue timestamp
func NewCrawlJob(slug, extractorKey, url, queue string) CrawlJob {
	return CrawlJob{
		ID:           uuid.NewString(),
		RetailerSlug: slug,
		ExtractorKey: extractorKey,
		URL:          url,
		Queue:        queue,
		EnqueuedAt:   time.Now().UTC(),
	}
}
