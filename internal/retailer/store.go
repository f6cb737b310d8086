package retailer

import (
	"context"
	"time"
)

// Store is the authoritative registry of retailers. Implementations must
// make outcome reporting (RecordSuccess/RecordFailure) atomic with respect
// to concurrent writers.
type Store interface {
	Create(ctx context.Context, r *Retailer) error
	GetBySlug(ctx context.Context, slug string) (*Retailer, error)
	List(ctx context.Context) ([]*Retailer, error)

	// Pause excludes a retailer until the given expiry
	Pause(ctx context.Context, slug string, until time.Time) (*Retailer, error)
	// Resume clears a pause explicitly
	Resume(ctx context.Context, slug string) (*Retailer, error)
	// Disable excludes a retailer until an explicit Enable
	Disable(ctx context.Context, slug string) (*Retailer, error)
	// Enable re-activates a disabled retailer and resets its failure streak
	Enable(ctx context.Context, slug string) (*Retailer, error)

	// RecordSuccess resets the failure streak and re-activates a crawlable retailer
	RecordSuccess(ctx context.Context, slug string) (*Retailer, error)
	// RecordFailure increments the failure streak and derives the new status
	RecordFailure(ctx context.Context, slug string) (*Retailer, error)
	// TouchLastCrawled stamps the retailer after a successful dispatch
	TouchLastCrawled(ctx context.Context, slug string) error

	// ResumeExpired re-activates every retailer whose pause has lapsed and
	// returns their slugs. Finding none is a normal outcome.
	ResumeExpired(ctx context.Context, now time.Time) ([]string, error)
}
