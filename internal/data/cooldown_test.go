package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis mimics SET NX PX semantics against a caller-driven clock
type fakeRedis struct {
	now  time.Time
	keys map[string]time.Time
	err  error
	ttls []time.Duration
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	f.ttls = append(f.ttls, expiration)
	if exp, ok := f.keys[key]; ok && f.now.Before(exp) {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = f.now.Add(expiration)
	return redis.NewBoolResult(true, nil)
}

func TestRedisCooldownStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	fake := &fakeRedis{now: now, keys: map[string]time.Time{}}
	store := NewRedisCooldownStore(fake, "test:")

	ok, err := store.Allow(ctx, "ping", "u1", 3*time.Second, now)
	require.NoError(t, err)
	assert.True(t, ok)

	fake.now = now.Add(time.Second)
	ok, _ = store.Allow(ctx, "ping", "u1", 3*time.Second, fake.now)
	assert.False(t, ok)

	fake.now = now.Add(3 * time.Second)
	ok, _ = store.Allow(ctx, "ping", "u1", 3*time.Second, fake.now)
	assert.True(t, ok)

	assert.Contains(t, fake.keys, "test:ping:u1")
	assert.Equal(t, 3*time.Second, fake.ttls[0])

	ok, _ = store.Allow(ctx, "ping", "u1", 0, fake.now)
	assert.True(t, ok, "zero cooldown never throttles")

	fake.err = errors.New("down")
	_, err = store.Allow(ctx, "ping", "u2", time.Second, fake.now)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	c, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	c.Close()

	_, err = NewRedisClient("::bad")
	assert.Error(t, err)
}
