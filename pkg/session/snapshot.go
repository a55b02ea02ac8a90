package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxnav/voxnav/pkg/dialog"
)

// RedisSnapshotter persists session snapshots as JSON values with a TTL.
// It is an optional layer: the in-memory store stays authoritative.
type RedisSnapshotter struct {
	client *redis.Client
	prefix string
}

func NewRedisSnapshotter(client *redis.Client, prefix string) *RedisSnapshotter {
	if prefix == "" {
		prefix = "voxnav:session:"
	}
	return &RedisSnapshotter{client: client, prefix: prefix}
}

func (r *RedisSnapshotter) key(userID string) string { return r.prefix + userID }

func (r *RedisSnapshotter) Save(ctx context.Context, sess *dialog.Session, ttl time.Duration) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(sess.UserID), b, ttl).Err()
}

func (r *RedisSnapshotter) Load(ctx context.Context, userID string) (*dialog.Session, error) {
	b, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess := dialog.NewSession(userID)
	if err := json.Unmarshal(b, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (r *RedisSnapshotter) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}

var _ Snapshotter = (*RedisSnapshotter)(nil)
