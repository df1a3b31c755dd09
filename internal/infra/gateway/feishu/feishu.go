// Package feishu is a gateway over the Lark/Feishu bot websocket and IM APIs.
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/infra/gateway"
)

const eventBuffer = 256

// Gateway implements repo.Gateway for Feishu bots. It keeps one event
// stream per app id for the life of the process.
type Gateway struct {
	logger zerolog.Logger

	mu      sync.Mutex
	streams map[string]*stream
}

// New creates a Feishu gateway
func New(logger zerolog.Logger) *Gateway {
	return &Gateway{
		logger:  logger.With().Str("gateway", "feishu").Logger(),
		streams: make(map[string]*stream),
	}
}

func (g *Gateway) stream(appID string) *stream {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.streams[appID]
	if !ok {
		s = newStream(appID, g.logger)
		g.streams[appID] = s
	}
	return s
}

// Name implements repo.Gateway
func (g *Gateway) Name() string { return "feishu" }

// appCredentials resolves the app id and secret from either an appState
// document {"app_id","app_secret"} or username/password
func appCredentials(creds domain.Credentials) (string, string, error) {
	switch creds.Type {
	case domain.CredentialAppState:
		f := creds.AppStateFields()
		if f["app_id"] == "" || f["app_secret"] == "" {
			return "", "", fmt.Errorf("%w: appState needs app_id and app_secret", domain.ErrInvalidCredentials)
		}
		return f["app_id"], f["app_secret"], nil
	case domain.CredentialCredentials:
		if creds.Username == "" || creds.Password == "" {
			return "", "", fmt.Errorf("%w: app id and secret are required", domain.ErrInvalidCredentials)
		}
		return creds.Username, creds.Password, nil
	}
	return "", "", fmt.Errorf("%w: unknown credential type %q", domain.ErrInvalidCredentials, creds.Type)
}

// Connect implements repo.Gateway. It authenticates by resolving the
// bot's own open_id before opening the event stream.
func (g *Gateway) Connect(ctx context.Context, creds domain.Credentials, opts repo.ConnectOptions) (repo.Connection, error) {
	appID, secret, err := appCredentials(creds)
	if err != nil {
		return nil, err
	}

	clientOpts := []lark.ClientOptionFunc{lark.WithReqTimeout(30 * time.Second)}
	if opts.Proxy != "" {
		httpClient, err := proxyClient(opts.Proxy)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, lark.WithHttpClient(httpClient))
	}
	cli := lark.NewClient(appID, secret, clientOpts...)

	selfID, err := fetchBotOpenID(ctx, cli)
	if err != nil {
		return nil, err
	}

	g.logger.Info().Str("bot_open_id", selfID).Msg("authenticated")
	return newConn(g.stream(appID), cli, secret, selfID, g.logger), nil
}

func fetchBotOpenID(ctx context.Context, cli *lark.Client) (string, error) {
	resp, err := cli.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return "", fmt.Errorf("get bot info: %w", err)
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return "", fmt.Errorf("decode bot info: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrAuthentication, result.Msg)
	}
	return result.Bot.OpenID, nil
}

// Conn implements repo.Connection
type Conn struct {
	stream *stream
	secret string
	cli    *lark.Client
	selfID string
	events chan *domain.MessageEvent
	errs   chan error
	closed chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newConn(s *stream, cli *lark.Client, secret, selfID string, logger zerolog.Logger) *Conn {
	return &Conn{
		stream: s,
		secret: secret,
		cli:    cli,
		selfID: selfID,
		events: make(chan *domain.MessageEvent, eventBuffer),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
		logger: logger,
	}
}

// SelfID implements repo.Connection
func (c *Conn) SelfID() string { return c.selfID }

func (c *Conn) enqueue(ev *domain.MessageEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn().Str("message_id", ev.MessageID).Msg("event buffer full, dropping")
	}
}

func (c *Conn) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// Listen implements repo.Connection. It attaches to the app's event
// stream, starting it on first use, and detaches on return.
func (c *Conn) Listen(ctx context.Context, handler repo.EventHandler) error {
	c.stream.attach(c)
	defer c.stream.detach(c)
	c.stream.run(c.secret)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case err := <-c.errs:
			return fmt.Errorf("feishu websocket: %w", err)
		case ev := <-c.events:
			handler(ctx, ev)
		}
	}
}

// SendMessage implements repo.Connection
func (c *Conn) SendMessage(ctx context.Context, threadID, content string) (*domain.SendReceipt, error) {
	body, _ := json.Marshal(map[string]string{"text": content})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(threadID).
			MsgType(larkim.MsgTypeText).
			Content(string(body)).
			Build()).
		Build()

	resp, err := c.cli.Im.Message.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("send message error: %s", resp.Msg)
	}

	receipt := &domain.SendReceipt{ThreadID: threadID, SentAt: time.Now()}
	if resp.Data != nil && resp.Data.MessageId != nil {
		receipt.MessageID = *resp.Data.MessageId
	}
	return receipt, nil
}

// MarkRead implements repo.Connection. Bots have no read receipts on
// Feishu, so this is a no-op.
func (c *Conn) MarkRead(ctx context.Context, threadID string) error { return nil }

// GetUserInfo implements repo.Connection
func (c *Conn) GetUserInfo(ctx context.Context, ids []string) ([]domain.UserInfo, error) {
	out := make([]domain.UserInfo, 0, len(ids))
	for _, id := range ids {
		req := larkcontact.NewGetUserReqBuilder().
			UserId(id).
			UserIdType("open_id").
			Build()
		resp, err := c.cli.Contact.User.Get(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("get user %s: %w", id, err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get user %s error: %s", id, resp.Msg)
		}

		info := domain.UserInfo{ID: id}
		if u := resp.Data.User; u != nil {
			if u.Name != nil {
				info.Name = *u.Name
			}
			if u.Avatar != nil && u.Avatar.Avatar240 != nil {
				info.ProfilePic = *u.Avatar.Avatar240
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// GetThreadInfo implements repo.Connection
func (c *Conn) GetThreadInfo(ctx context.Context, threadID string) (*domain.ThreadInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(threadID).
		Build()

	resp, err := c.cli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &domain.ThreadInfo{ID: threadID}
	if resp.Data.Name != nil {
		info.Name = *resp.Data.Name
	}
	if resp.Data.ChatMode != nil {
		info.IsGroup = *resp.Data.ChatMode != "p2p"
	}
	if resp.Data.UserCount != nil {
		info.ParticipantCount, _ = strconv.Atoi(*resp.Data.UserCount)
	}
	return info, nil
}

// Close implements repo.Connection
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.stream.detach(c)
	})
	return nil
}

func proxyClient(raw string) (*http.Client, error) {
	transport, err := gateway.ProxyTransport(raw)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: 30 * time.Second}, nil
}
