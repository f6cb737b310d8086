package stats

import (
	"context"
	"time"
)

// Counter names one of the per-day crawl statistics
type Counter string

const (
	CrawlsStarted      Counter = "crawls_started"
	CrawlsCompleted    Counter = "crawls_completed"
	CrawlsFailed       Counter = "crawls_failed"
	ListingsDiscovered Counter = "listings_discovered"
	DetailsExtracted   Counter = "details_extracted"
)

// Stat is one (retailer, calendar date) row of monotonically increasing
// counters
type Stat struct {
	RetailerID         int64
	Date               time.Time
	CrawlsStarted      int64
	CrawlsCompleted    int64
	CrawlsFailed       int64
	ListingsDiscovered int64
	DetailsExtracted   int64
}

// Store records per-retailer, per-day counters. Increments must tolerate
// concurrent writers without a global lock; rows are created lazily on the
// first event for a (retailer, date) pair.
type Store interface {
	Increment(ctx context.Context, retailerID int64, counter Counter, n int64) error
	ForDate(ctx context.Context, retailerID int64, date time.Time) (*Stat, error)
}
