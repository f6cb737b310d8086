package ingest

import (
	"context"
	"encoding/json"

	"priceowl/crawlworker/internal/record"
	apperrors "priceowl/crawlworker/pkg/errors"
	"priceowl/crawlworker/services/publisher"
)

// Stream topics consumed by the downstream matching/persistence pipeline
const (
	TopicListing = "listing"
	TopicProduct = "product"
	TopicReview  = "review"
	TopicStatus  = "status"
)

// envelope wraps a record with its owning retailer for downstream routing
type envelope struct {
	RetailerID int64 `json:"retailer_id"`
	Payload    any   `json:"payload"`
}

// StreamIngester hands records to the downstream pipeline over the redis
// stream publisher. It is the production implementation of all three
// collaborator interfaces.
type StreamIngester struct {
	pub publisher.Publisher
}

// NewStreamIngester creates a stream-backed ingester
func NewStreamIngester(pub publisher.Publisher) *StreamIngester {
	return &StreamIngester{pub: pub}
}

func (s *StreamIngester) publish(topic, slug string, retailerID int64, payload any) error {
	data, err := json.Marshal(envelope{RetailerID: retailerID, Payload: payload})
	if err != nil {
		return apperrors.NewIngest(slug, "failed to encode record", err)
	}
	if err := s.pub.Publish(topic, data); err != nil {
		return apperrors.NewIngest(slug, "failed to publish record", err)
	}
	return nil
}

func (s *StreamIngester) IngestListing(_ context.Context, retailerID int64, ref record.ListingRef) error {
	return s.publish(TopicListing, ref.Metadata.RetailerSlug, retailerID, ref)
}

func (s *StreamIngester) IngestProduct(_ context.Context, retailerID int64, product record.ProductRecord) error {
	return s.publish(TopicProduct, product.Metadata.RetailerSlug, retailerID, product)
}

func (s *StreamIngester) IngestReview(_ context.Context, retailerID int64, review record.ReviewRecord) error {
	return s.publish(TopicReview, review.Metadata.RetailerSlug, retailerID, review)
}

func (s *StreamIngester) NotifyStatusChange(_ context.Context, notification StatusChange) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return apperrors.NewIngest(notification.Slug, "failed to encode status change", err)
	}
	if err := s.pub.Publish(TopicStatus, data); err != nil {
		return apperrors.NewIngest(notification.Slug, "failed to publish status change", err)
	}
	return nil
}
