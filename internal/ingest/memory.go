package ingest

import (
	"context"
	"sync"

	"priceowl/crawlworker/internal/record"
)

// Collector is an in-memory ingester used by tests. It records everything
// handed to it and can be told to reject, to exercise failure paths.
type Collector struct {
	mu            sync.Mutex
	Listings      []record.ListingRef
	Products      []record.ProductRecord
	Reviews       []record.ReviewRecord
	StatusChanges []StatusChange
	FailWith      error
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) IngestListing(_ context.Context, _ int64, ref record.ListingRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	c.Listings = append(c.Listings, ref)
	return nil
}

func (c *Collector) IngestProduct(_ context.Context, _ int64, product record.ProductRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	c.Products = append(c.Products, product)
	return nil
}

func (c *Collector) IngestReview(_ context.Context, _ int64, review record.ReviewRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	c.Reviews = append(c.Reviews, review)
	return nil
}

func (c *Collector) NotifyStatusChange(_ context.Context, notification StatusChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusChanges = append(c.StatusChanges, notification)
	return nil
}
