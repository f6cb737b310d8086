package job

import (
	"context"

	"priceowl/crawlworker/logger"
)

// Retry re-enqueues one dead letter's original job and removes the letter.
// The letter is deleted only after the push succeeds, so a queue outage
// leaves it parked for another attempt.
func Retry(ctx context.Context, store DeadLetterStore, queue Queue, id string) error {
	letter, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	j := letter.Job
	j.Delay = 0
	if err := queue.Push(ctx, j); err != nil {
		return err
	}
	return store.Delete(ctx, id)
}

// RetryAll re-enqueues every dead letter and returns how many were pushed.
// Letters that fail to push stay in the store.
func RetryAll(ctx context.Context, store DeadLetterStore, queue Queue) (int, error) {
	letters, err := store.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	log := logger.ForComponent("deadletter")
	retried := 0
	for _, letter := range letters {
		if err := Retry(ctx, store, queue, letter.ID); err != nil {
			log.WithError(err).WithField("dead_letter_id", letter.ID).
				Warn().Msg("Failed to retry dead letter")
			continue
		}
		retried++
	}
	return retried, nil
}
