package retailer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and inline tooling. It
// applies the same guarded transitions as the SQL store, under a mutex.
type MemoryStore struct {
	mu         sync.Mutex
	thresholds Thresholds
	nextID     int64
	retailers  map[string]*Retailer
}

// NewMemoryStore creates an empty in-memory retailer store
func NewMemoryStore(thresholds Thresholds) *MemoryStore {
	return &MemoryStore{
		thresholds: thresholds,
		nextID:     1,
		retailers:  make(map[string]*Retailer),
	}
}

func (s *MemoryStore) Create(_ context.Context, r *Retailer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status == "" {
		r.Status = StatusActive
	}
	if existing, ok := s.retailers[r.Slug]; ok {
		existing.Name = r.Name
		existing.BaseURL = r.BaseURL
		existing.ExtractorKey = r.ExtractorKey
		existing.RateLimit = r.RateLimit
		r.ID = existing.ID
		return nil
	}
	r.ID = s.nextID
	s.nextID++
	clone := *r
	s.retailers[r.Slug] = &clone
	return nil
}

func (s *MemoryStore) get(slug string) (*Retailer, error) {
	r, ok := s.retailers[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) GetBySlug(_ context.Context, slug string) (*Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(slug)
	if err != nil {
		return nil, err
	}
	clone := *r
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Retailer, 0, len(s.retailers))
	for _, r := range s.retailers {
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *MemoryStore) mutate(slug string, fn func(*Retailer) error) (*Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.get(slug)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	clone := *r
	return &clone, nil
}

func (s *MemoryStore) Pause(_ context.Context, slug string, until time.Time) (*Retailer, error) {
	return s.mutate(slug, func(r *Retailer) error { return r.applyPause(until) })
}

func (s *MemoryStore) Resume(_ context.Context, slug string) (*Retailer, error) {
	return s.mutate(slug, func(r *Retailer) error { return r.applyResume() })
}

func (s *MemoryStore) Disable(_ context.Context, slug string) (*Retailer, error) {
	return s.mutate(slug, func(r *Retailer) error { return r.applyDisable() })
}

func (s *MemoryStore) Enable(_ context.Context, slug string) (*Retailer, error) {
	return s.mutate(slug, func(r *Retailer) error { return r.applyEnable() })
}

func (s *MemoryStore) RecordSuccess(_ context.Context, slug string) (*Retailer, error) {
	return s.mutate(slug, func(r *Retailer) error {
		r.applySuccess(time.Now())
		return nil
	})
}

func (s *MemoryStore) RecordFailure(_ context.Context, slug string) (*Retailer, error) {
	return s.mutate(slug, func(r *Retailer) error {
		r.applyFailure(time.Now(), s.thresholds)
		return nil
	})
}

func (s *MemoryStore) TouchLastCrawled(_ context.Context, slug string) error {
	_, err := s.mutate(slug, func(r *Retailer) error {
		now := time.Now()
		r.LastCrawledAt = &now
		return nil
	})
	return err
}

func (s *MemoryStore) ResumeExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var slugs []string
	for _, r := range s.retailers {
		if r.Status == StatusPaused && r.PauseExpiry != nil && !r.PauseExpiry.After(now) {
			r.Status = StatusActive
			r.PauseExpiry = nil
			slugs = append(slugs, r.Slug)
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}
