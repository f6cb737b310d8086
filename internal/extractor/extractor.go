package extractor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"priceowl/crawlworker/internal/record"
)

// ListingExtractor turns a category/listing page into product page references
type ListingExtractor interface {
	// CanHandle is a pure URL-pattern test, no network access
	CanHandle(url string) bool
	// Extract parses the document into zero or more listing references.
	// Missing optional fields never cause an error.
	Extract(doc *goquery.Document, url string) ([]record.ListingRef, error)
}

// ProductExtractor turns a product detail page into a ProductRecord
type ProductExtractor interface {
	CanHandle(url string) bool
	Extract(doc *goquery.Document, url string) ([]record.ProductRecord, error)
}

// ReviewExtractor turns a page's review section into ReviewRecords
type ReviewExtractor interface {
	CanHandle(url string) bool
	Extract(doc *goquery.Document, url string) ([]record.ReviewRecord, error)
}

// Set bundles a retailer's extractors per record kind, each an ordered
// candidate list: the first extractor whose CanHandle claims the URL wins.
type Set struct {
	Slug        string
	EntryPoints []string
	Listings    []ListingExtractor
	Products    []ProductExtractor
	Reviews     []ReviewExtractor
}

// ListingFor returns the first listing extractor claiming the URL
func (s *Set) ListingFor(url string) ListingExtractor {
	for _, e := range s.Listings {
		if e.CanHandle(url) {
			return e
		}
	}
	return nil
}

// ProductFor returns the first product extractor claiming the URL
func (s *Set) ProductFor(url string) ProductExtractor {
	for _, e := range s.Products {
		if e.CanHandle(url) {
			return e
		}
	}
	return nil
}

// ReviewFor returns the first review extractor claiming the URL
func (s *Set) ReviewFor(url string) ReviewExtractor {
	for _, e := range s.Reviews {
		if e.CanHandle(url) {
			return e
		}
	}
	return nil
}

// Factory builds a retailer's extractor set
type Factory func() *Set

// Registry resolves a retailer's stored extractor key to a concrete
// extractor set. Population happens at startup; resolution of an unknown
// key is a configuration error, never a nil dereference.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a stable string key to an extractor-set factory
func (r *Registry) Register(key string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

// Resolve returns the extractor set for the given key
func (r *Registry) Resolve(key string) (*Set, error) {
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no extractor registered for key %q", key)
	}
	set := factory()
	if set == nil {
		return nil, fmt.Errorf("extractor factory for key %q produced nil", key)
	}
	return set, nil
}

// Keys returns all registered keys in stable order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
