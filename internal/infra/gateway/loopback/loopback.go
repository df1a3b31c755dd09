// Package loopback is an in-process gateway for development and tests.
// Outbound messages are recorded and logged; inbound events are injected.
package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

// DefaultSelfID is the bot account id reported by loopback connections
const DefaultSelfID = "loopback-bot"

// Sent is one recorded outbound message
type Sent struct {
	ThreadID string
	Content  string
	At       time.Time
}

// Gateway implements repo.Gateway without any network
type Gateway struct {
	selfID string
	logger zerolog.Logger

	mu       sync.Mutex
	connects int
	failures []error
	active   *Conn
	sent     []Sent
}

// New creates a loopback gateway
func New(logger zerolog.Logger) *Gateway {
	return &Gateway{
		selfID: DefaultSelfID,
		logger: logger.With().Str("gateway", "loopback").Logger(),
	}
}

// Name implements repo.Gateway
func (g *Gateway) Name() string { return "loopback" }

// FailNext makes the next len(errs) Connect calls fail with errs in order
func (g *Gateway) FailNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, errs...)
}

// Connects returns how many times Connect was called
func (g *Gateway) Connects() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connects
}

// Active returns the most recent open connection, or nil
func (g *Gateway) Active() *Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Sent returns a copy of every message sent through any connection
func (g *Gateway) Sent() []Sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Sent, len(g.sent))
	copy(out, g.sent)
	return out
}

// Connect implements repo.Gateway
func (g *Gateway) Connect(ctx context.Context, creds domain.Credentials, opts repo.ConnectOptions) (repo.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connects++
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		return nil, err
	}

	c := &Conn{
		gw:     g,
		events: make(chan delivery),
		broken: make(chan error, 1),
		closed: make(chan struct{}),
	}
	g.active = c
	g.logger.Info().Str("user_agent", opts.UserAgent).Msg("connected")
	return c, nil
}

// Inject delivers ev to the active connection and waits until it is handled
func (g *Gateway) Inject(ctx context.Context, ev *domain.MessageEvent) error {
	c := g.Active()
	if c == nil {
		return domain.ErrNotConnected
	}
	return c.Inject(ctx, ev)
}

func (g *Gateway) record(s Sent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, s)
}

func (g *Gateway) release(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == c {
		g.active = nil
	}
}

type delivery struct {
	ev   *domain.MessageEvent
	done chan struct{}
}

// Conn implements repo.Connection
type Conn struct {
	gw     *Gateway
	events chan delivery
	broken chan error
	closed chan struct{}
	once   sync.Once
}

// SelfID implements repo.Connection
func (c *Conn) SelfID() string { return c.gw.selfID }

// Listen implements repo.Connection
func (c *Conn) Listen(ctx context.Context, handler repo.EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case err := <-c.broken:
			return err
		case d := <-c.events:
			handler(ctx, d.ev)
			close(d.done)
		}
	}
}

// Inject hands ev to the listener and blocks until the handler returns
func (c *Conn) Inject(ctx context.Context, ev *domain.MessageEvent) error {
	if ev.MessageID == "" {
		ev.MessageID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	d := delivery{ev: ev, done: make(chan struct{})}
	select {
	case c.events <- d:
	case <-c.closed:
		return domain.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Break makes Listen return err as if the stream failed
func (c *Conn) Break(err error) {
	select {
	case c.broken <- err:
	default:
	}
}

// SendMessage implements repo.Connection
func (c *Conn) SendMessage(ctx context.Context, threadID, content string) (*domain.SendReceipt, error) {
	select {
	case <-c.closed:
		return nil, fmt.Errorf("loopback send: %w", domain.ErrNotConnected)
	default:
	}

	now := time.Now()
	c.gw.record(Sent{ThreadID: threadID, Content: content, At: now})
	c.gw.logger.Info().Str("thread", threadID).Str("content", content).Msg("send")
	return &domain.SendReceipt{MessageID: uuid.NewString(), ThreadID: threadID, SentAt: now}, nil
}

// MarkRead implements repo.Connection
func (c *Conn) MarkRead(ctx context.Context, threadID string) error { return nil }

// GetUserInfo implements repo.Connection
func (c *Conn) GetUserInfo(ctx context.Context, ids []string) ([]domain.UserInfo, error) {
	out := make([]domain.UserInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserInfo{ID: id, Name: id})
	}
	return out, nil
}

// GetThreadInfo implements repo.Connection
func (c *Conn) GetThreadInfo(ctx context.Context, threadID string) (*domain.ThreadInfo, error) {
	return &domain.ThreadInfo{ID: threadID, Name: threadID}, nil
}

// Close implements repo.Connection
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.gw.release(c)
	})
	return nil
}
