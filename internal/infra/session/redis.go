package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/form"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bff:form:"

// RedisStore keeps sessions in Redis under keyPrefix with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store on client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Connect parses url, pings the server and returns the client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Get loads a session.
func (r *RedisStore) Get(ctx context.Context, id string) (*form.Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load form session %s: %w", id, err)
	}
	return decode(id, data)
}

// Save stores s and renews its TTL.
func (r *RedisStore) Save(ctx context.Context, s *form.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save form session %s: %w", s.ID, err)
	}
	return nil
}

// Delete discards the session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete form session %s: %w", id, err)
	}
	return nil
}

// Health pings Redis.
func (r *RedisStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
