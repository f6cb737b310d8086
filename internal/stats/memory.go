package stats

import (
	"context"
	"sync"
	"time"
)

type statKey struct {
	retailerID int64
	date       string
}

// MemoryStore is an in-memory Store for tests and inline tooling
type MemoryStore struct {
	mu    sync.Mutex
	stats map[statKey]*Stat
}

// NewMemoryStore creates an empty in-memory statistics store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[statKey]*Stat)}
}

func (s *MemoryStore) Increment(_ context.Context, retailerID int64, counter Counter, n int64) error {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statKey{retailerID: retailerID, date: time.Now().Format("2006-01-02")}
	st, ok := s.stats[key]
	if !ok {
		st = &Stat{RetailerID: retailerID, Date: time.Now().Truncate(24 * time.Hour)}
		s.stats[key] = st
	}
	switch counter {
	case CrawlsStarted:
		st.CrawlsStarted += n
	case CrawlsCompleted:
		st.CrawlsCompleted += n
	case CrawlsFailed:
		st.CrawlsFailed += n
	case ListingsDiscovered:
		st.ListingsDiscovered += n
	case DetailsExtracted:
		st.DetailsExtracted += n
	}
	return nil
}

func (s *MemoryStore) ForDate(_ context.Context, retailerID int64, date time.Time) (*Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statKey{retailerID: retailerID, date: date.Format("2006-01-02")}
	if st, ok := s.stats[key]; ok {
		clone := *st
		return &clone, nil
	}
	return &Stat{RetailerID: retailerID, Date: date}, nil
}
