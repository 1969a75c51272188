package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	v1 "montage/internal/contracts/video/v1"
	"montage/internal/jobs"
)

// RedisEvents publishes job transitions on a pub/sub channel.
type RedisEvents struct {
	rdb     *redis.Client
	channel string
}

func NewRedisEvents(rdb *redis.Client, channel string) *RedisEvents {
	return &RedisEvents{rdb: rdb, channel: channel}
}

func (e *RedisEvents) Publish(ctx context.Context, job jobs.Job) error {
	body, err := EncodeEvent(job)
	if err != nil {
		return err
	}
	return e.rdb.Publish(ctx, e.channel, body).Err()
}

// EncodeEvent renders the event payload for job.
func EncodeEvent(job jobs.Job) ([]byte, error) {
	return json.Marshal(v1.NewEvent(job))
}
