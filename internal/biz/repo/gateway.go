package repo

import (
	"context"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// ConnectOptions are derived from BotConfig before every connect attempt
type ConnectOptions struct {
	SelfListen     bool
	AutoMarkRead   bool
	ListenTimeout  time.Duration
	ListenInterval time.Duration
	Proxy          string
	UserAgent      string
}

// EventHandler receives inbound message events from a connection
type EventHandler func(ctx context.Context, ev *domain.MessageEvent)

// Gateway opens sessions against a messaging platform
type Gateway interface {
	// Name identifies the gateway in logs
	Name() string

	// Connect authenticates and returns a live connection.
	// Bad credentials yield an error wrapping domain.ErrAuthentication.
	Connect(ctx context.Context, creds domain.Credentials, opts ConnectOptions) (Connection, error)
}

// Connection is an authenticated gateway session
type Connection interface {
	// SelfID is the bot account's own user id, if known
	SelfID() string

	// Listen delivers events to handler one at a time and blocks until
	// the stream breaks (non-nil error) or ctx is done (nil error)
	Listen(ctx context.Context, handler EventHandler) error

	SendMessage(ctx context.Context, threadID, content string) (*domain.SendReceipt, error)
	MarkRead(ctx context.Context, threadID string) error
	GetUserInfo(ctx context.Context, ids []string) ([]domain.UserInfo, error)
	GetThreadInfo(ctx context.Context, threadID string) (*domain.ThreadInfo, error)

	Close() error
}
