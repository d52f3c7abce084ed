package recheckq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisQueueKey = "recheckq/jobs"

// Redis-backed queue for deployments where the API surface and the scan worker
// run in separate processes.
type RedisQueue struct {
	Client *redis.Client
}

func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisQueue{Client: rdb}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, listingID string) error {
	raw, err := json.Marshal(Job{ListingID: listingID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return q.Client.RPush(ctx, redisQueueKey, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		// bounded block so ctx cancellation is noticed promptly
		res, err := q.Client.BLPop(ctx, 5*time.Second, redisQueueKey).Result()
		if err == redis.Nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			continue
		} else if err != nil {
			return nil, err
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, err
		}
		return &job, nil
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.Client.LLen(ctx, redisQueueKey).Result()
	return int(n), err
}
