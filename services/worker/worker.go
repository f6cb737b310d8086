package worker

import (
	"context"
	"sync"
	"time"

	"priceowl/crawlworker/internal/job"
	"priceowl/crawlworker/logger"
	"priceowl/crawlworker/pkg/metrics"
	"priceowl/crawlworker/services/publisher"
)

// Pool runs a fixed set of goroutines that pop crawl jobs from the queue
// and hand them to the executor. A failing job is the executor's problem;
// the pool only stops when its context ends.
type Pool struct {
	queue        job.Queue
	executor     *job.Executor
	publisher    publisher.Publisher
	queues       []string
	size         int
	pollInterval time.Duration
	log          *logger.Logger
}

// NewPool creates a worker pool consuming the given queue names
func NewPool(queue job.Queue, executor *job.Executor, pub publisher.Publisher, queues []string, size int, pollInterval time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		queue:        queue,
		executor:     executor,
		publisher:    pub,
		queues:       queues,
		size:         size,
		pollInterval: pollInterval,
		log:          logger.ForComponent("worker"),
	}
}

// Run starts the pool and blocks until the context ends and every worker
// has drained its in-flight job.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info().
		Int("workers", p.size).
		Strs("queues", p.queues).
		Msg("Worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.housekeeping(ctx)
	}()

	wg.Wait()
	p.log.Info().Msg("Worker pool stopped")
}

// work is one worker's loop: pop from each queue in order, run what
// arrives, sleep when everything is empty.
func (p *Pool) work(ctx context.Context, id int) {
	log := p.log.WithField("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}

		ran := false
		for _, queue := range p.queues {
			j, err := p.queue.Pop(ctx, queue)
			if err != nil {
				log.WithError(err).Error().Msg("Failed to pop job")
				continue
			}
			if j == nil {
				continue
			}

			ran = true
			if err := p.executor.Execute(ctx, *j); err != nil {
				// Execute already recorded the failure; the worker moves on
				log.WithError(err).WithField("job_id", j.ID).
					Debug().Msg("Job failed")
			}
		}

		if !ran {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
		}
	}
}

// housekeeping periodically publishes queue depth and trims the outbound
// streams so a slow consumer cannot grow them without bound.
func (p *Pool) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reportDepth(ctx)
			if p.publisher != nil {
				if err := p.publisher.TrimStreams(); err != nil {
					p.log.WithError(err).Warn().Msg("Failed to trim streams")
				}
			}
		}
	}
}

func (p *Pool) reportDepth(ctx context.Context) {
	if metrics.JobsInQueue == nil {
		return
	}
	var total int64
	for _, queue := range p.queues {
		n, err := p.queue.Size(ctx, queue)
		if err != nil {
			p.log.WithError(err).Warn().Msg("Failed to read queue depth")
			return
		}
		total += n
	}
	metrics.JobsInQueue.Set(float64(total))
}
