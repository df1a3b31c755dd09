package repo

import (
	"context"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// UserRepo persists users observed by the bot
type UserRepo interface {
	// Get returns domain.ErrNotFound when the user does not exist
	Get(ctx context.Context, id string) (*domain.User, error)

	List(ctx context.Context) ([]*domain.User, error)

	Count(ctx context.Context) (int, error)

	// Touch creates the user with MessageCount=1, or increments
	// MessageCount and refreshes LastActive, in one statement
	Touch(ctx context.Context, id, username string, at time.Time) (*domain.User, error)

	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
}

// ThreadTouch describes one message observed in a thread
type ThreadTouch struct {
	ID          string
	Name        string // used only on creation
	IsGroup     bool
	LastMessage string
	At          time.Time
}

// ThreadRepo persists conversations observed by the bot
type ThreadRepo interface {
	Get(ctx context.Context, id string) (*domain.Thread, error)
	List(ctx context.Context) ([]*domain.Thread, error)
	Count(ctx context.Context) (int, error)

	// Touch creates the thread with MessageCount=1, or increments
	// MessageCount and refreshes the preview fields, in one statement
	Touch(ctx context.Context, t ThreadTouch) (*domain.Thread, error)

	Update(ctx context.Context, id string, patch domain.ThreadPatch) (*domain.Thread, error)
}

// CommandRepo persists the command registry rows
type CommandRepo interface {
	GetByName(ctx context.Context, name string) (*domain.Command, error)
	GetByID(ctx context.Context, id string) (*domain.Command, error)
	List(ctx context.Context) ([]*domain.Command, error)

	// CreateIfAbsent inserts a default row for meta unless a row with the
	// same name exists. Existing rows are left untouched.
	CreateIfAbsent(ctx context.Context, meta domain.CommandMeta) (bool, error)

	IncrementUsage(ctx context.Context, name string) error

	Update(ctx context.Context, id string, patch domain.CommandPatch) (*domain.Command, error)
}

// ConfigRepo persists the singleton BotConfig
type ConfigRepo interface {
	// Get returns domain.DefaultBotConfig when nothing has been saved
	Get(ctx context.Context) (*domain.BotConfig, error)
	Update(ctx context.Context, patch domain.ConfigPatch) (*domain.BotConfig, error)
}

// SessionRepo persists the singleton Session
type SessionRepo interface {
	Get(ctx context.Context) (*domain.Session, error)
	Update(ctx context.Context, patch domain.SessionPatch) (*domain.Session, error)
}

// LogFilter narrows an activity log listing
type LogFilter struct {
	Type  domain.LogType // empty means all types
	Limit int            // <= 0 means all retained entries
}

// LogRepo persists the capped activity log
type LogRepo interface {
	// Add appends an entry and evicts the oldest beyond domain.MaxLogEntries
	Add(ctx context.Context, entry *domain.ActivityLog) error

	// List returns entries newest first
	List(ctx context.Context, filter LogFilter) ([]*domain.ActivityLog, error)

	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// StatsRepo persists the global counters
type StatsRepo interface {
	Counters(ctx context.Context) (*domain.Counters, error)
	Increment(ctx context.Context, c domain.Counter) error

	// SetStartTime records when the current connection began; zero clears it
	SetStartTime(ctx context.Context, t time.Time) error
}

// Store bundles the repositories the bot core reads and writes
type Store struct {
	Users    UserRepo
	Threads  ThreadRepo
	Commands CommandRepo
	Config   ConfigRepo
	Session  SessionRepo
	Logs     LogRepo
	Stats    StatsRepo
}

// CooldownStore tracks per (command, user) expiry timestamps
type CooldownStore interface {
	// Allow reports whether command may run for userID at now. When it
	// may, a new expiry of now+cooldown is recorded atomically.
	Allow(ctx context.Context, command, userID string, cooldown time.Duration, now time.Time) (bool, error)
}
