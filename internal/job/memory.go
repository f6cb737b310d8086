package job

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue used by tests.
type MemoryQueue struct {
	mu      sync.Mutex
	ready   map[string][]CrawlJob
	delayed map[string][]delayedJob
}

type delayedJob struct {
	job     CrawlJob
	readyAt time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		ready:   make(map[string][]CrawlJob),
		delayed: make(map[string][]delayedJob),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, j CrawlJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j.Delay > 0 {
		q.delayed[j.Queue] = append(q.delayed[j.Queue], delayedJob{
			job:     j,
			readyAt: time.Now().Add(j.Delay),
		})
		return nil
	}
	q.ready[j.Queue] = append(q.ready[j.Queue], j)
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, queue string) (*CrawlJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	remaining := q.delayed[queue][:0]
	for _, d := range q.delayed[queue] {
		if !d.readyAt.After(now) {
			q.ready[queue] = append(q.ready[queue], d.job)
		} else {
			remaining = append(remaining, d)
		}
	}
	q.delayed[queue] = remaining

	if len(q.ready[queue]) == 0 {
		return nil, nil
	}
	j := q.ready[queue][0]
	q.ready[queue] = q.ready[queue][1:]
	return &j, nil
}

func (q *MemoryQueue) Size(ctx context.Context, queue string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ready[queue]) + len(q.delayed[queue])), nil
}

// MemoryDeadLetterStore is an in-process DeadLetterStore used by tests.
type MemoryDeadLetterStore struct {
	mu      sync.Mutex
	letters map[string]DeadLetter
}

func NewMemoryDeadLetterStore() *MemoryDeadLetterStore {
	return &MemoryDeadLetterStore{letters: make(map[string]DeadLetter)}
}

func (s *MemoryDeadLetterStore) Save(ctx context.Context, d DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters[d.ID] = d
	return nil
}

func (s *MemoryDeadLetterStore) Get(ctx context.Context, id string) (*DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.letters[id]
	if !ok {
		return nil, ErrDeadLetterNotFound
	}
	return &d, nil
}

func (s *MemoryDeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetter, 0, len(s.letters))
	for _, d := range s.letters {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.After(out[j].FailedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryDeadLetterStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[id]; !ok {
		return ErrDeadLetterNotFound
	}
	delete(s.letters, id)
	return nil
}
