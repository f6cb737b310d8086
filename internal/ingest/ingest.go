package ingest

import (
	"context"

	"priceowl/crawlworker/internal/record"
)

// ListingIngester accepts discovered listings and extracted product
// details. Implementations upsert by external id and, for products, append
// price history and hand the record to the matching engine; all of that is
// downstream of this interface.
type ListingIngester interface {
	IngestListing(ctx context.Context, retailerID int64, ref record.ListingRef) error
	IngestProduct(ctx context.Context, retailerID int64, product record.ProductRecord) error
}

// ReviewIngester accepts extracted reviews, idempotent on external id
type ReviewIngester interface {
	IngestReview(ctx context.Context, retailerID int64, review record.ReviewRecord) error
}

// StatusNotifier broadcasts retailer status changes to operator tooling
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, notification StatusChange) error
}

// StatusChange describes one retailer status transition
type StatusChange struct {
	Slug   string `json:"slug"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}
