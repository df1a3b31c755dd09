package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz"
	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
)

// DefaultSettleDelay is the pause between stop and start on restart
const DefaultSettleDelay = 2 * time.Second

var userAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
}

// Timer is a pending reconnect
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Deps are the collaborators of a BotCore
type Deps struct {
	Gateway   repo.Gateway
	Store     *repo.Store
	Usecases  *biz.Usecases
	Cooldowns repo.CooldownStore
	Notifier  repo.Notifier
	Metrics   Metrics
	Logger    zerolog.Logger

	// Optional overrides, mostly for tests
	AfterFunc   AfterFunc
	SettleDelay time.Duration
	Now         func() time.Time
}

// Status is the lifecycle snapshot of a BotCore
type Status struct {
	State          domain.ConnState `json:"state"`
	Attempts       int              `json:"attempts"`
	HasCredentials bool             `json:"hasCredentials"`
	Gateway        string           `json:"gateway"`
}

// BotCore owns the gateway session: it connects, reconnects with
// backoff, listens, and routes inbound events through its Router
type BotCore struct {
	gateway  repo.Gateway
	store    *repo.Store
	stats    *usecase.StatsUsecase
	activity *usecase.ActivityUsecase
	notifier repo.Notifier
	metrics  Metrics
	router   *Router
	logger   zerolog.Logger

	afterFunc AfterFunc
	settle    time.Duration
	now       func() time.Time

	mu           sync.Mutex
	state        domain.ConnState
	attempts     int
	creds        *domain.Credentials
	conn         repo.Connection
	listenCancel context.CancelFunc
	timer        Timer
	// gen is bumped by Stop; timers and listeners from an older
	// generation must not touch state
	gen uint64
}

// NewBotCore creates a BotCore and its Router
func NewBotCore(d Deps) *BotCore {
	if d.Notifier == nil {
		d.Notifier = repo.NopNotifier{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Cooldowns == nil {
		d.Cooldowns = usecase.NewCooldownTracker()
	}
	if d.AfterFunc == nil {
		d.AfterFunc = realAfterFunc
	}
	if d.SettleDelay == 0 {
		d.SettleDelay = DefaultSettleDelay
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	b := &BotCore{
		gateway:   d.Gateway,
		store:     d.Store,
		stats:     d.Usecases.Stats,
		activity:  d.Usecases.Activity,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		logger:    d.Logger.With().Str("component", "bot").Logger(),
		afterFunc: d.AfterFunc,
		settle:    d.SettleDelay,
		now:       d.Now,
		state:     domain.StateDisconnected,
	}
	b.router = NewRouter(RouterDeps{
		Store:     d.Store,
		Registry:  d.Usecases.Registry,
		Cooldowns: d.Cooldowns,
		Activity:  d.Usecases.Activity,
		Notifier:  d.Notifier,
		Metrics:   d.Metrics,
		Sender:    b,
		Stats:     b,
		Logger:    d.Logger,
		Now:       d.Now,
	})
	return b
}

// Router returns the dispatch core fed by the active connection
func (b *BotCore) Router() *Router {
	return b.router
}

// Status returns the lifecycle snapshot
func (b *BotCore) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		State:          b.state,
		Attempts:       b.attempts,
		HasCredentials: b.creds != nil,
		Gateway:        b.gateway.Name(),
	}
}

// State returns the lifecycle state
func (b *BotCore) State() domain.ConnState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connection returns the active connection, or nil
func (b *BotCore) Connection() repo.Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

// Stats implements usecase.StatsReader
func (b *BotCore) Stats(ctx context.Context) (*domain.Stats, error) {
	return b.stats.Snapshot(ctx, b.State())
}

// Start connects with creds. It fails with domain.ErrInvalidCredentials
// for a malformed payload and domain.ErrAlreadyRunning while a session is
// active. A failed first attempt returns nil when a reconnect was scheduled;
// an attempt overtaken by Stop returns domain.ErrConnection.
func (b *BotCore) Start(ctx context.Context, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		b.activity.Error(ctx, "Failed to start bot", err.Error())
		return err
	}

	b.mu.Lock()
	if b.state.Active() {
		b.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	c := creds
	b.creds = &c
	b.attempts = 0
	b.state = domain.StateConnecting
	gen := b.gen
	b.mu.Unlock()

	return b.connect(ctx, gen)
}

// Stop cancels any pending reconnect, closes the connection and resets
// the session. It is safe from any state and idempotent.
func (b *BotCore) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	conn := b.conn
	cancel := b.listenCancel
	wasActive := b.state.Active()
	b.conn = nil
	b.listenCancel = nil
	b.attempts = 0
	b.state = domain.StateStopped
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("close connection")
		}
	}

	b.markOffline(ctx)
	b.metrics.ConnectionState(domain.StateStopped, domain.HealthMin)
	if wasActive {
		b.activity.Info(ctx, "Bot stopped", "")
	}
	return nil
}

// Restart stops, waits the settle delay, then starts with the stored credentials
func (b *BotCore) Restart(ctx context.Context) error {
	b.mu.Lock()
	var creds *domain.Credentials
	if b.creds != nil {
		c := *b.creds
		creds = &c
	}
	b.mu.Unlock()

	if creds == nil {
		return domain.ErrNoCredentials
	}

	if err := b.Stop(ctx); err != nil {
		return err
	}

	t := time.NewTimer(b.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	return b.Start(ctx, *creds)
}

// SendMessage sends text to threadID through the active connection
func (b *BotCore) SendMessage(ctx context.Context, threadID, text string) (*domain.SendReceipt, error) {
	conn := b.Connection()
	if conn == nil {
		return nil, domain.ErrNotConnected
	}

	receipt, err := conn.SendMessage(ctx, threadID, text)
	if err != nil {
		b.activity.Error(ctx, "Failed to send message to thread "+threadID, err.Error())
		return nil, fmt.Errorf("send message: %w", err)
	}

	if err := b.store.Stats.Increment(ctx, domain.CounterMessagesSent); err != nil {
		b.logger.Error().Err(err).Msg("increment messages sent")
	}
	b.metrics.MessageSent()
	b.activity.Message(ctx, "Sent message to thread "+threadID, text)
	b.notifyStats(ctx)
	return receipt, nil
}

// errSuperseded is returned by an attempt that Stop overtook
var errSuperseded = fmt.Errorf("%w: stopped during connect", domain.ErrConnection)

// connect runs one connect attempt for generation gen. Session writes
// that follow a generation check happen under b.mu, so a concurrent
// Stop's offline write always lands after them.
func (b *BotCore) connect(ctx context.Context, gen uint64) error {
	cfg := b.loadConfig(ctx)

	b.mu.Lock()
	if b.gen != gen || b.creds == nil {
		b.mu.Unlock()
		return errSuperseded
	}
	creds := *b.creds
	b.updateSession(ctx, domain.SessionPatch{
		IsConnected:      ptr(false),
		ConnectionHealth: ptr(domain.HealthConnecting),
	})
	b.mu.Unlock()
	b.activity.Info(ctx, "Connecting to "+b.gateway.Name()+"...", "")

	if err := creds.Validate(); err != nil {
		b.fail(ctx, gen)
		return err
	}

	conn, err := b.gateway.Connect(ctx, creds, b.connectOptions(cfg, creds))
	if err != nil {
		b.activity.Error(ctx, "Connection failed", err.Error())
		return b.onConnectFailure(ctx, gen, cfg, err)
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		_ = conn.Close()
		return errSuperseded
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	b.conn = conn
	b.listenCancel = cancel
	b.state = domain.StateConnected
	b.attempts = 0

	now := b.now()
	b.updateSession(ctx, domain.SessionPatch{
		AppState:         ptr(creds.AppState),
		Username:         ptr(creds.Username),
		UserID:           ptr(conn.SelfID()),
		IsConnected:      ptr(true),
		LastConnected:    &now,
		ConnectionHealth: ptr(domain.HealthMax),
	})
	if err := b.store.Stats.SetStartTime(ctx, now); err != nil {
		b.logger.Error().Err(err).Msg("set start time")
	}
	b.mu.Unlock()

	b.metrics.ConnectionState(domain.StateConnected, domain.HealthMax)
	b.activity.Info(ctx, "Successfully connected", b.gateway.Name())
	b.notifyStats(ctx)

	go b.listen(listenCtx, conn, gen)
	return nil
}

func (b *BotCore) onConnectFailure(ctx context.Context, gen uint64, cfg *domain.BotConfig, cause error) error {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return errSuperseded
	}
	if cfg.AutoReconnect && b.attempts < usecase.MaxReconnectAttempts {
		r := b.scheduleReconnectLocked(ctx, gen)
		b.mu.Unlock()
		b.afterSchedule(ctx, r)
		return nil
	}
	b.mu.Unlock()

	b.fail(ctx, gen)
	return fmt.Errorf("%w: %w", domain.ErrConnection, cause)
}

// fail moves generation gen into the terminal disconnected state
func (b *BotCore) fail(ctx context.Context, gen uint64) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.state = domain.StateDisconnected
	b.mu.Unlock()

	b.markOffline(ctx)
	b.metrics.ConnectionState(domain.StateDisconnected, domain.HealthMin)
}

type reconnectPlan struct {
	scheduled bool
	attempt   int
	delay     time.Duration
	health    int
}

// scheduleReconnectLocked arms the reconnect timer. b.mu must be held.
// A second call while a timer is pending is a no-op.
func (b *BotCore) scheduleReconnectLocked(ctx context.Context, gen uint64) reconnectPlan {
	if b.timer != nil {
		return reconnectPlan{}
	}
	b.attempts++
	p := reconnectPlan{
		scheduled: true,
		attempt:   b.attempts,
		delay:     usecase.BackoffDelay(b.attempts),
		health:    usecase.HealthAfter(b.attempts),
	}
	b.state = domain.StateReconnecting
	b.timer = b.afterFunc(p.delay, func() { b.fireReconnect(gen) })
	b.updateSession(ctx, domain.SessionPatch{
		IsConnected:      ptr(false),
		ConnectionHealth: ptr(p.health),
	})
	return p
}

func (b *BotCore) afterSchedule(ctx context.Context, p reconnectPlan) {
	if !p.scheduled {
		return
	}
	b.metrics.ReconnectScheduled()
	b.metrics.ConnectionState(domain.StateReconnecting, p.health)
	b.activity.Warn(ctx, fmt.Sprintf("Reconnecting in %ds (attempt %d/%d)",
		int(p.delay/time.Second), p.attempt, usecase.MaxReconnectAttempts), "")
}

func (b *BotCore) fireReconnect(gen uint64) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.state = domain.StateConnecting
	b.mu.Unlock()

	err := b.connect(context.Background(), gen)
	switch {
	case errors.Is(err, errSuperseded):
		b.logger.Debug().Msg("reconnect overtaken by stop")
	case err != nil:
		b.logger.Error().Err(err).Msg("reconnect gave up")
	}
}

// listen pumps events from conn until it breaks or is cancelled
func (b *BotCore) listen(ctx context.Context, conn repo.Connection, gen uint64) {
	err := conn.Listen(ctx, func(evCtx context.Context, ev *domain.MessageEvent) {
		b.router.Handle(evCtx, conn, ev)
	})
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = errors.New("listen stream closed")
	}

	bg := context.Background()
	b.activity.Error(bg, "Listen error", err.Error())
	cfg := b.loadConfig(bg)

	b.mu.Lock()
	if b.gen != gen || b.conn != conn {
		b.mu.Unlock()
		return
	}
	cancel := b.listenCancel
	b.conn = nil
	b.listenCancel = nil
	var plan reconnectPlan
	if cfg.AutoReconnect {
		plan = b.scheduleReconnectLocked(bg, gen)
	} else {
		b.state = domain.StateDisconnected
	}
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.Close()
	if err := b.store.Stats.SetStartTime(bg, time.Time{}); err != nil {
		b.logger.Error().Err(err).Msg("clear start time")
	}

	if plan.scheduled {
		b.afterSchedule(bg, plan)
		return
	}
	b.markOffline(bg)
	b.metrics.ConnectionState(domain.StateDisconnected, domain.HealthMin)
}

func (b *BotCore) connectOptions(cfg *domain.BotConfig, creds domain.Credentials) repo.ConnectOptions {
	opts := repo.ConnectOptions{
		SelfListen:     cfg.SelfListen,
		AutoMarkRead:   cfg.AutoMarkRead,
		ListenTimeout:  time.Duration(cfg.ListenTimeout) * time.Millisecond,
		ListenInterval: time.Duration(cfg.ListenInterval) * time.Millisecond,
		Proxy:          cfg.Proxy,
	}
	if creds.Proxy != "" {
		opts.Proxy = creds.Proxy
	}
	if cfg.RandomUserAgent {
		opts.UserAgent = userAgents[rand.IntN(len(userAgents))]
	}
	return opts
}

func (b *BotCore) loadConfig(ctx context.Context) *domain.BotConfig {
	cfg, err := b.store.Config.Get(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("load bot config, using defaults")
		d := domain.DefaultBotConfig()
		return &d
	}
	return cfg
}

// markOffline persists isConnected=false, health=0 and clears uptime
func (b *BotCore) markOffline(ctx context.Context) {
	b.updateSession(ctx, domain.SessionPatch{
		IsConnected:      ptr(false),
		ConnectionHealth: ptr(domain.HealthMin),
	})
	if err := b.store.Stats.SetStartTime(ctx, time.Time{}); err != nil {
		b.logger.Error().Err(err).Msg("clear start time")
	}
	b.notifyStats(ctx)
}

func (b *BotCore) updateSession(ctx context.Context, patch domain.SessionPatch) {
	s, err := b.store.Session.Update(ctx, patch)
	if err != nil {
		b.logger.Error().Err(err).Msg("update session")
		return
	}
	out := *s
	out.AppState = ""
	b.notifier.Notify(repo.NotifySession, out)
}

func (b *BotCore) notifyStats(ctx context.Context) {
	s, err := b.Stats(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("snapshot stats")
		return
	}
	b.notifier.Notify(repo.NotifyStats, s)
}

func ptr[T any](v T) *T {
	return &v
}
