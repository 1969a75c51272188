package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	v1 "montage/internal/contracts/video/v1"
)

// RedisQueue is a list of JSON job messages. Producers LPUSH, the
// worker BRPOPs, so jobs are taken in arrival order.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Push enqueues a job message.
func (q *RedisQueue) Push(ctx context.Context, msg v1.QueuedJob) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.queueName, body).Err()
}

// Pop blocks for up to timeout waiting for a message. It returns nil, nil
// when the wait times out with an empty queue.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Len reports the queue depth.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}
