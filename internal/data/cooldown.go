package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/botdeck/botdeck/internal/biz/repo"
)

// setNXer is the slice of the redis client the cooldown store needs
type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// redisCooldownStore implements repo.CooldownStore on Redis keys that
// expire with the cooldown, so several botd processes share throttling
type redisCooldownStore struct {
	client setNXer
	prefix string
}

// NewRedisCooldownStore creates a cooldown store on client
func NewRedisCooldownStore(client setNXer, prefix string) repo.CooldownStore {
	if prefix == "" {
		prefix = "botdeck:cooldown:"
	}
	return &redisCooldownStore{client: client, prefix: prefix}
}

// Allow sets the pair's key only if absent
func (s *redisCooldownStore) Allow(ctx context.Context, command, userID string, cooldown time.Duration, now time.Time) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	key := s.prefix + command + ":" + userID
	ok, err := s.client.SetNX(ctx, key, now.UnixMilli(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
