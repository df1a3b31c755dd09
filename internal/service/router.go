package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
)

// DedupeWindow is how long a message id is remembered
const DedupeWindow = 5 * time.Minute

// Reasons an inbound event or command is dropped without a reply
const (
	DropDuplicate = "duplicate"
	DropSelf      = "self"
	DropUnknown   = "unknown_command"
	DropDisabled  = "disabled"
	DropBlocked   = "blocked"
	DropCooldown  = "cooldown"
)

// Metrics receives router and session instrumentation
type Metrics interface {
	MessageReceived()
	MessageSent()
	Dropped(reason string)
	CommandExecuted(name string, err error, elapsed time.Duration)
	ConnectionState(state domain.ConnState, health int)
	ReconnectScheduled()
}

type nopMetrics struct{}

func (nopMetrics) MessageReceived() {}
func (nopMetrics) MessageSent() {}
func (nopMetrics) Dropped(string) {}
func (nopMetrics) CommandExecuted(string, error, time.Duration) {}
func (nopMetrics) ConnectionState(domain.ConnState, int) {}
func (nopMetrics) ReconnectScheduled() {}

// RouterDeps are the collaborators of a Router
type RouterDeps struct {
	Store     *repo.Store
	Registry  *usecase.Registry
	Cooldowns repo.CooldownStore
	Activity  *usecase.ActivityUsecase
	Notifier  repo.Notifier
	Metrics   Metrics
	Sender    usecase.Sender
	Stats     usecase.StatsReader
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Router records inbound traffic and dispatches prefixed messages to
// command handlers. Events are handled one at a time.
type Router struct {
	store     *repo.Store
	registry  *usecase.Registry
	cooldowns repo.CooldownStore
	activity  *usecase.ActivityUsecase
	notifier  repo.Notifier
	metrics   Metrics
	sender    usecase.Sender
	stats     usecase.StatsReader
	dedupe    *usecase.Deduper
	logger    zerolog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewRouter creates a new router
func NewRouter(d RouterDeps) *Router {
	if d.Notifier == nil {
		d.Notifier = repo.NopNotifier{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Router{
		store:     d.Store,
		registry:  d.Registry,
		cooldowns: d.Cooldowns,
		activity:  d.Activity,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		sender:    d.Sender,
		stats:     d.Stats,
		dedupe:    usecase.NewDeduper(DedupeWindow),
		logger:    d.Logger.With().Str("component", "router").Logger(),
		now:       d.Now,
	}
}

// Sweep forgets expired message ids
func (r *Router) Sweep(now time.Time) int {
	return r.dedupe.Sweep(now)
}

// Handle processes one inbound event. conn may be nil for injected events.
// Failures are logged; nothing propagates back to the gateway.
func (r *Router) Handle(ctx context.Context, conn repo.Connection, ev *domain.MessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.dedupe.FirstSeen(ev.MessageID, now) {
		r.drop(DropDuplicate, ev, "")
		return
	}

	cfg, err := r.store.Config.Get(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("load bot config, using defaults")
		d := domain.DefaultBotConfig()
		cfg = &d
	}

	if !cfg.SelfListen && conn != nil && conn.SelfID() != "" && ev.SenderID == conn.SelfID() {
		r.drop(DropSelf, ev, "")
		return
	}

	if err := r.store.Stats.Increment(ctx, domain.CounterMessagesReceived); err != nil {
		r.logger.Error().Err(err).Msg("increment messages received")
	}
	r.metrics.MessageReceived()

	user, err := r.store.Users.Touch(ctx, ev.SenderID, ev.SenderID, now)
	if err != nil {
		r.logger.Error().Err(err).Str("sender", ev.SenderID).Msg("upsert user")
	} else {
		r.notifier.Notify(repo.NotifyUser, user)
	}

	thread, err := r.store.Threads.Touch(ctx, repo.ThreadTouch{
		ID:          ev.ThreadID,
		Name:        domain.DefaultThreadName(ev.IsGroup),
		IsGroup:     ev.IsGroup,
		LastMessage: ev.Body,
		At:          now,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("thread", ev.ThreadID).Msg("upsert thread")
	} else {
		r.notifier.Notify(repo.NotifyThread, thread)
	}

	if cfg.AutoMarkRead && conn != nil {
		if err := conn.MarkRead(ctx, ev.ThreadID); err != nil {
			r.logger.Debug().Err(err).Str("thread", ev.ThreadID).Msg("mark read")
		}
	}

	if strings.HasPrefix(ev.Body, cfg.Prefix) {
		r.dispatch(ctx, conn, ev, cfg.Prefix, user, now)
	}

	if s, err := r.stats.Stats(ctx); err == nil {
		r.notifier.Notify(repo.NotifyStats, s)
	}
}

// dispatch resolves and runs the command named in ev
func (r *Router) dispatch(ctx context.Context, conn repo.Connection, ev *domain.MessageEvent, prefix string, user *domain.User, now time.Time) {
	fields := strings.Fields(ev.Body[len(prefix):])
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	handler, ok := r.registry.Resolve(name)
	if !ok {
		r.drop(DropUnknown, ev, name)
		return
	}

	row, err := r.store.Commands.GetByName(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error().Err(err).Str("command", name).Msg("load command row")
		}
		row = nil
	}
	if row != nil && !row.IsEnabled {
		r.drop(DropDisabled, ev, name)
		return
	}
	if user != nil && user.IsBlocked {
		r.drop(DropBlocked, ev, name)
		return
	}

	cooldown := handler.Meta().Normalize().Cooldown
	if row != nil && row.Cooldown > 0 {
		cooldown = row.Cooldown
	}
	allowed, err := r.cooldowns.Allow(ctx, name, ev.SenderID, time.Duration(cooldown)*time.Second, now)
	if err != nil {
		// fail open
		r.logger.Warn().Err(err).Str("command", name).Msg("cooldown check failed")
		allowed = true
	}
	if !allowed {
		r.drop(DropCooldown, ev, name)
		return
	}

	if err := r.store.Stats.Increment(ctx, domain.CounterCommandsExecuted); err != nil {
		r.logger.Error().Err(err).Msg("increment commands executed")
	}
	if err := r.store.Commands.IncrementUsage(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Error().Err(err).Str("command", name).Msg("increment usage")
	}
	r.activity.Info(ctx, "Command executed: "+name, fmt.Sprintf("User: %s, Thread: %s", ev.SenderID, ev.ThreadID))

	cc := &usecase.CommandContext{
		Event:    ev,
		Name:     name,
		Args:     args,
		Prefix:   prefix,
		Received: now,
		Sender:   r.sender,
		Conn:     conn,
		Store:    r.store,
		Stats:    r.stats,
		Registry: r.registry,
	}

	start := time.Now()
	err = r.execute(ctx, handler, cc)
	r.metrics.CommandExecuted(name, err, time.Since(start))

	var cerr *domain.CommandExecutionError
	if errors.As(err, &cerr) {
		r.activity.Error(ctx, "Command error: "+name, cerr.Err.Error())
	}

	if updated, err := r.store.Commands.GetByName(ctx, name); err == nil {
		r.notifier.Notify(repo.NotifyCommand, updated)
	}
}

// execute runs h, converting errors and panics into CommandExecutionError
func (r *Router) execute(ctx context.Context, h usecase.CommandHandler, cc *usecase.CommandContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &domain.CommandExecutionError{Command: cc.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if e := h.Execute(ctx, cc); e != nil {
		return &domain.CommandExecutionError{Command: cc.Name, Err: e}
	}
	return nil
}

func (r *Router) drop(reason string, ev *domain.MessageEvent, command string) {
	r.metrics.Dropped(reason)
	r.logger.Debug().
		Str("reason", reason).
		Str("command", command).
		Str("sender", ev.SenderID).
		Str("thread", ev.ThreadID).
		Str("message_id", ev.MessageID).
		Msg("dropped")
}
