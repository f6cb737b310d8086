package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue carries crawl jobs from the dispatcher to the workers. Push honors
// the job's Delay; Pop returns (nil, nil) when the queue is empty.
type Queue interface {
	Push(ctx context.Context, j CrawlJob) error
	Pop(ctx context.Context, queue string) (*CrawlJob, error)
	Size(ctx context.Context, queue string) (int64, error)
}

const (
	queueKeyPrefix   = "crawl:jobs:"
	delayedKeySuffix = ":delayed"
)

// RedisQueue implements Queue on Redis: a list per queue name for ready
// jobs, plus a sorted set scored by ready-time for delayed jobs. Pop
// promotes due delayed jobs before taking from the list.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a queue over the given redis client
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func queueKey(queue string) string   { return queueKeyPrefix + queue }
func delayedKey(queue string) string { return queueKey(queue) + delayedKeySuffix }

func (q *RedisQueue) Push(ctx context.Context, j CrawlJob) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", j.ID, err)
	}
	if j.Delay > 0 {
		readyAt := float64(time.Now().Add(j.Delay).UnixMilli())
		return q.client.ZAdd(ctx, delayedKey(j.Queue), redis.Z{
			Score:  readyAt,
			Member: payload,
		}).Err()
	}
	return q.client.LPush(ctx, queueKey(j.Queue), payload).Err()
}

// promoteDue moves delayed jobs whose ready-time has passed onto the list.
// ZRem-before-LPush keeps promotion safe under concurrent workers: only
// the worker that removed a member enqueues it.
func (q *RedisQueue) promoteDue(ctx context.Context, queue string) error {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, delayedKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil || len(members) == 0 {
		return err
	}
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, delayedKey(queue), member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // another worker promoted it
		}
		if err := q.client.LPush(ctx, queueKey(queue), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, queue string) (*CrawlJob, error) {
	if err := q.promoteDue(ctx, queue); err != nil {
		return nil, err
	}
	payload, err := q.client.RPop(ctx, queueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var j CrawlJob
	if err := json.Unmarshal([]byte(payload), &j); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	return &j, nil
}

func (q *RedisQueue) Size(ctx context.Context, queue string) (int64, error) {
	ready, err := q.client.LLen(ctx, queueKey(queue)).Result()
	if err != nil {
		return 0, err
	}
	delayed, err := q.client.ZCard(ctx, delayedKey(queue)).Result()
	if err != nil {
		return 0, err
	}
	return ready + delayed, nil
}
