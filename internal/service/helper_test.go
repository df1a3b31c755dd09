package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/botdeck/botdeck/internal/biz"
	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
	"github.com/botdeck/botdeck/internal/data"
	"github.com/botdeck/botdeck/internal/infra/gateway/loopback"
)

// fakeClock hands out timers that only fire when the test says so
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireNext runs the single pending timer synchronously
func (c *fakeClock) fireNext(t *testing.T) time.Duration {
	t.Helper()
	p := c.pending()
	require.Len(t, p, 1, "expected exactly one pending timer")
	c.mu.Lock()
	p[0].fired = true
	c.mu.Unlock()
	p[0].f()
	return p[0].d
}

// wallClock is a settable Now for cooldown and uptime arithmetic
type wallClock struct {
	mu sync.Mutex
	at time.Time
}

func (w *wallClock) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.at
}

func (w *wallClock) Advance(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.at = w.at.Add(d)
}

// recordingMetrics counts drops by reason
type recordingMetrics struct {
	nopMetrics
	mu      sync.Mutex
	dropped map[string]int
}

func (m *recordingMetrics) Dropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropped == nil {
		m.dropped = make(map[string]int)
	}
	m.dropped[reason]++
}

func (m *recordingMetrics) count(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

type harness struct {
	core    *BotCore
	gw      *loopback.Gateway
	store   *repo.Store
	uc      *biz.Usecases
	clock   *fakeClock
	wall    *wallClock
	metrics *recordingMetrics
}

func newHarness(t *testing.T, extra ...usecase.CommandHandler) *harness {
	t.Helper()

	d, err := data.NewData(data.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	store := data.NewStore(d)
	uc := biz.NewUsecases(store, nil, zerolog.Nop())
	for _, h := range append(usecase.Builtins(), extra...) {
		require.NoError(t, uc.Registry.Register(h))
	}
	_, err = uc.Registry.Seed(context.Background())
	require.NoError(t, err)

	h := &harness{
		gw:      loopback.New(zerolog.Nop()),
		store:   store,
		uc:      uc,
		clock:   &fakeClock{},
		wall:    &wallClock{at: time.Now()},
		metrics: &recordingMetrics{},
	}
	h.core = NewBotCore(Deps{
		Gateway:     h.gw,
		Store:       store,
		Usecases:    uc,
		Metrics:     h.metrics,
		Logger:      zerolog.Nop(),
		AfterFunc:   h.clock.AfterFunc,
		SettleDelay: time.Millisecond,
		Now:         h.wall.Now,
	})
	t.Cleanup(func() { h.core.Stop(context.Background()) })
	return h
}

func validCreds() domain.Credentials {
	return domain.Credentials{Type: domain.CredentialAppState, AppState: `{"token":"x"}`}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.core.Start(context.Background(), validCreds()))
	require.Equal(t, domain.StateConnected, h.core.State())
}

func (h *harness) inject(t *testing.T, ev *domain.MessageEvent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.gw.Inject(ctx, ev))
}

func (h *harness) counters(t *testing.T) *domain.Counters {
	t.Helper()
	c, err := h.store.Stats.Counters(context.Background())
	require.NoError(t, err)
	return c
}

func (h *harness) logMessages(t *testing.T) []string {
	t.Helper()
	logs, err := h.store.Logs.List(context.Background(), repo.LogFilter{})
	require.NoError(t, err)
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Message)
	}
	return out
}
