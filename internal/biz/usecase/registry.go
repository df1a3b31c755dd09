package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

// Sender delivers a reply through the active gateway connection
type Sender interface {
	SendMessage(ctx context.Context, threadID, text string) (*domain.SendReceipt, error)
}

// StatsReader exposes the aggregate stats snapshot to commands
type StatsReader interface {
	Stats(ctx context.Context) (*domain.Stats, error)
}

// CommandContext is what a handler sees for one invocation
type CommandContext struct {
	Event    *domain.MessageEvent
	Name     string
	Args     []string
	Prefix   string
	Received time.Time

	Sender   Sender
	Conn     repo.Connection // metadata lookups; may be nil in tests
	Store    *repo.Store
	Stats    StatsReader
	Registry *Registry
}

// Text returns the arguments joined by single spaces
func (c *CommandContext) Text() string {
	return strings.Join(c.Args, " ")
}

// Reply sends text to the thread the command came from
func (c *CommandContext) Reply(ctx context.Context, text string) error {
	_, err := c.Sender.SendMessage(ctx, c.Event.ThreadID, text)
	return err
}

// CommandHandler is implemented by built-in and script commands
type CommandHandler interface {
	Meta() domain.CommandMeta
	Execute(ctx context.Context, cc *CommandContext) error
}

// HandlerFunc adapts a function plus metadata to CommandHandler
type HandlerFunc struct {
	M  domain.CommandMeta
	Fn func(ctx context.Context, cc *CommandContext) error
}

// Meta implements CommandHandler
func (h HandlerFunc) Meta() domain.CommandMeta { return h.M }

// Execute implements CommandHandler
func (h HandlerFunc) Execute(ctx context.Context, cc *CommandContext) error { return h.Fn(ctx, cc) }

// ErrDuplicateCommand is returned when registering a name twice
var ErrDuplicateCommand = errors.New("command already registered")

// Registry maps command names to handlers and keeps the persisted
// command table in sync with them
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
	commands repo.CommandRepo
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry backed by commands
func NewRegistry(commands repo.CommandRepo, logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]CommandHandler),
		commands: commands,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds h under its lower-cased name
func (r *Registry) Register(h CommandHandler) error {
	name := strings.ToLower(strings.TrimSpace(h.Meta().Name))
	if name == "" {
		return fmt.Errorf("register command: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("register %s: %w", name, ErrDuplicateCommand)
	}
	r.handlers[name] = h
	return nil
}

// Resolve returns the handler registered under name
func (r *Registry) Resolve(name string) (CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.ToLower(name)]
	return h, ok
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seed creates a default row for every handler without one.
// Existing rows keep their enablement, cooldown and usage count.
func (r *Registry) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, name := range r.Names() {
		h, _ := r.Resolve(name)
		meta := h.Meta().Normalize()
		meta.Name = name

		ok, err := r.commands.CreateIfAbsent(ctx, meta)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", name, err)
		}
		if ok {
			created++
		}
	}
	r.logger.Info().Int("created", created).Int("registered", len(r.Names())).Msg("command table seeded")
	return created, nil
}

// ListEnabled returns the persisted rows that are enabled and backed by a
// registered handler, ordered by name
func (r *Registry) ListEnabled(ctx context.Context) ([]*domain.Command, error) {
	rows, err := r.commands.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}

	enabled := make([]*domain.Command, 0, len(rows))
	for _, row := range rows {
		if !row.IsEnabled {
			continue
		}
		if _, ok := r.Resolve(row.Name); !ok {
			continue
		}
		enabled = append(enabled, row)
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name < enabled[j].Name })
	return enabled, nil
}
