package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-auth-service/internal/biz"
)

const pendingKeyPrefix = "social-auth:pending:"

// RedisPendingStore holds pending extra fields in Redis, for deployments
// running more than one instance behind a load balancer. GETDEL gives the
// same single-consumer guarantee the memory store gets from its mutex, and
// the key TTL replaces the sweep.
type RedisPendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPendingStore(addr, password string, ttl time.Duration) (*RedisPendingStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisPendingStore{client: client, ttl: ttl}, nil
}

func (s *RedisPendingStore) Stash(ctx context.Context, key string, attrs map[string]string) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode pending fields: %w", err)
	}
	if err := s.client.Set(ctx, pendingKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending fields: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Take(ctx context.Context, key string) (map[string]string, error) {
	data, err := s.client.GetDel(ctx, pendingKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume pending fields: %w", err)
	}
	attrs := map[string]string{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode pending fields: %w", err)
	}
	return attrs, nil
}

// Close releases the Redis connection.
func (s *RedisPendingStore) Close() error {
	return s.client.Close()
}

var _ biz.PendingStore = (*RedisPendingStore)(nil)
