package data

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

func newTestStore(t *testing.T) *repo.Store {
	t.Helper()
	d, err := NewData(MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewStore(d)
}

func TestNewData_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.db")
	d, err := NewData(path)
	require.NoError(t, err)
	defer d.Close()
	assert.NoError(t, d.Ping())

	// reopening applies the schema again without error
	d2, err := NewData(path)
	require.NoError(t, err)
	d2.Close()
}

func TestUserRepo_TouchAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.UnixMilli(1_700_000_000_000)

	u, err := s.Users.Touch(ctx, "u1", "u1", at)
	require.NoError(t, err)
	assert.Equal(t, 1, u.MessageCount)

	got, err := s.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.True(t, got.LastActive.Equal(at))

	later := at.Add(time.Minute)
	u, err = s.Users.Touch(ctx, "u1", "ignored", later)
	require.NoError(t, err)
	assert.Equal(t, 2, u.MessageCount)
	assert.Equal(t, "u1", u.Username, "username is set on creation only")
	assert.True(t, u.LastActive.Equal(later))

	_, err = s.Users.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_Update(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Users.Touch(ctx, "u1", "u1", time.Now())
	require.NoError(t, err)

	blocked := true
	u, err := s.Users.Update(ctx, "u1", domain.UserPatch{IsBlocked: &blocked})
	require.NoError(t, err)
	assert.True(t, u.IsBlocked)

	got, _ := s.Users.Get(ctx, "u1")
	assert.True(t, got.IsBlocked)
	assert.Equal(t, 1, got.MessageCount)

	_, err = s.Users.Update(ctx, "nope", domain.UserPatch{IsBlocked: &blocked})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	n, _ := s.Users.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestUserRepo_ConcurrentTouchesDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Users.Touch(ctx, "u1", "u1", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := s.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, u.MessageCount)
}

func TestThreadRepo_Touch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	long := ""
	for i := 0; i < 30; i++ {
		long += "hello "
	}

	th, err := s.Threads.Touch(ctx, repo.ThreadTouch{ID: "t1", Name: domain.GroupThreadName, IsGroup: true, LastMessage: long, At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, th.MessageCount)
	assert.Equal(t, "Group Chat", th.Name)
	assert.Len(t, th.LastMessage, domain.MaxPreviewLength)

	th, err = s.Threads.Touch(ctx, repo.ThreadTouch{ID: "t1", Name: "other", IsGroup: true, LastMessage: "/ping", At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 2, th.MessageCount)
	assert.Equal(t, "Group Chat", th.Name)
	assert.Equal(t, "/ping", th.LastMessage)

	muted := true
	th, err = s.Threads.Update(ctx, "t1", domain.ThreadPatch{IsMuted: &muted})
	require.NoError(t, err)
	assert.True(t, th.IsMuted)

	list, err := s.Threads.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.Threads.Get(ctx, "t2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCommandRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.Commands.CreateIfAbsent(ctx, domain.CommandMeta{Name: "ping", Category: "utility", Cooldown: 3})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Commands.CreateIfAbsent(ctx, domain.CommandMeta{Name: "ping", Category: "other", Cooldown: 9})
	require.NoError(t, err)
	assert.False(t, created)

	c, err := s.Commands.GetByName(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, "utility", c.Category)
	assert.Equal(t, 3, c.Cooldown)
	assert.True(t, c.IsEnabled)
	assert.Equal(t, "/ping", c.Usage)

	require.NoError(t, s.Commands.IncrementUsage(ctx, "ping"))
	require.NoError(t, s.Commands.IncrementUsage(ctx, "ping"))
	assert.True(t, errors.Is(s.Commands.IncrementUsage(ctx, "nope"), domain.ErrNotFound))

	off := false
	c, err = s.Commands.Update(ctx, c.ID, domain.CommandPatch{IsEnabled: &off})
	require.NoError(t, err)
	assert.False(t, c.IsEnabled)
	assert.Equal(t, 2, c.UsageCount)

	byID, err := s.Commands.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, byID)

	_, err = s.Commands.Update(ctx, "missing", domain.CommandPatch{IsEnabled: &off})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConfigRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cfg, err := s.Config.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBotConfig(), *cfg)

	prefix := "!"
	off := false
	cfg, err = s.Config.Update(ctx, domain.ConfigPatch{Prefix: &prefix, AutoReconnect: &off})
	require.NoError(t, err)
	assert.Equal(t, "!", cfg.Prefix)

	cfg, err = s.Config.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "!", cfg.Prefix)
	assert.False(t, cfg.AutoReconnect)
	assert.Equal(t, 60000, cfg.ListenTimeout)
}

func TestSessionRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.Session.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, sess.ConnectionHealth)
	assert.False(t, sess.IsConnected)

	connected := true
	health := 250
	now := time.UnixMilli(1_700_000_123_000)
	sess, err = s.Session.Update(ctx, domain.SessionPatch{IsConnected: &connected, ConnectionHealth: &health, LastConnected: &now})
	require.NoError(t, err)
	assert.Equal(t, 100, sess.ConnectionHealth)

	sess, err = s.Session.Get(ctx)
	require.NoError(t, err)
	assert.True(t, sess.IsConnected)
	assert.True(t, sess.LastConnected.Equal(now))
}

func TestLogRepo_CapAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Now()

	for i := 0; i < domain.MaxLogEntries+1; i++ {
		typ := domain.LogInfo
		if i%10 == 0 {
			typ = domain.LogError
		}
		err := s.Logs.Add(ctx, &domain.ActivityLog{
			ID:        fmt.Sprintf("log-%d", i),
			Type:      typ,
			Message:   fmt.Sprintf("entry %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}

	n, err := s.Logs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLogEntries, n)

	logs, err := s.Logs.List(ctx, repo.LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, domain.MaxLogEntries)
	assert.Equal(t, "log-1000", logs[0].ID, "newest first")
	assert.Equal(t, "log-1", logs[len(logs)-1].ID, "oldest evicted")

	errs, err := s.Logs.List(ctx, repo.LogFilter{Type: domain.LogError, Limit: 3})
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.Equal(t, "log-1000", errs[0].ID)
	assert.Equal(t, "log-990", errs[1].ID)

	require.NoError(t, s.Logs.Clear(ctx))
	logs, err = s.Logs.List(ctx, repo.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestStatsRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Stats.Increment(ctx, domain.CounterMessagesReceived))
	require.NoError(t, s.Stats.Increment(ctx, domain.CounterMessagesReceived))
	require.NoError(t, s.Stats.Increment(ctx, domain.CounterCommandsExecuted))
	assert.Error(t, s.Stats.Increment(ctx, "bogus"))

	start := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, s.Stats.SetStartTime(ctx, start))

	c, err := s.Stats.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.MessagesReceived)
	assert.Equal(t, int64(0), c.MessagesSent)
	assert.Equal(t, int64(1), c.CommandsExecuted)
	assert.True(t, c.StartTime.Equal(start))

	require.NoError(t, s.Stats.SetStartTime(ctx, time.Time{}))
	c, _ = s.Stats.Counters(ctx)
	assert.True(t, c.StartTime.IsZero())
}
