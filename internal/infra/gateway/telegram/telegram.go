// Package telegram is a gateway over the Telegram Bot API long poll.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/infra/gateway"
)

const defaultPollTimeout = 60

// Gateway implements repo.Gateway for Telegram bots
type Gateway struct {
	logger zerolog.Logger
}

// New creates a Telegram gateway
func New(logger zerolog.Logger) *Gateway {
	return &Gateway{logger: logger.With().Str("gateway", "telegram").Logger()}
}

// Name implements repo.Gateway
func (g *Gateway) Name() string { return "telegram" }

// botToken resolves the token from appState {"token"} or the password
func botToken(creds domain.Credentials) (string, error) {
	switch creds.Type {
	case domain.CredentialAppState:
		if tok := creds.AppStateFields()["token"]; tok != "" {
			return tok, nil
		}
		return "", fmt.Errorf("%w: appState needs a token", domain.ErrInvalidCredentials)
	case domain.CredentialCredentials:
		if creds.Password != "" {
			return creds.Password, nil
		}
		return "", fmt.Errorf("%w: password must hold the bot token", domain.ErrInvalidCredentials)
	}
	return "", fmt.Errorf("%w: unknown credential type %q", domain.ErrInvalidCredentials, creds.Type)
}

// Connect implements repo.Gateway. The Bot API validates the token with getMe.
func (g *Gateway) Connect(ctx context.Context, creds domain.Credentials, opts repo.ConnectOptions) (repo.Connection, error) {
	token, err := botToken(creds)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 90 * time.Second}
	if opts.Proxy != "" {
		transport, err := gateway.ProxyTransport(opts.Proxy)
		if err != nil {
			return nil, err
		}
		client.Transport = transport
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAuthentication, apiErr.Message)
		}
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}

	timeout := int(opts.ListenTimeout / time.Second)
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	g.logger.Info().Str("username", api.Self.UserName).Msg("authorized")
	return &Conn{
		api:         api,
		selfID:      strconv.FormatInt(api.Self.ID, 10),
		pollTimeout: timeout,
		closed:      make(chan struct{}),
		logger:      g.logger,
	}, nil
}

// Conn implements repo.Connection
type Conn struct {
	api         *tgbotapi.BotAPI
	selfID      string
	pollTimeout int
	closed      chan struct{}
	once        sync.Once
	logger      zerolog.Logger
}

// SelfID implements repo.Connection
func (c *Conn) SelfID() string { return c.selfID }

// Listen implements repo.Connection
func (c *Conn) Listen(ctx context.Context, handler repo.EventHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if ev, ok := toMessageEvent(update); ok {
				handler(ctx, ev)
			}
		}
	}
}

func toMessageEvent(update tgbotapi.Update) (*domain.MessageEvent, bool) {
	m := update.Message
	if m == nil || m.Chat == nil {
		return nil, false
	}
	body := m.Text
	if body == "" {
		body = m.Caption
	}
	if body == "" {
		return nil, false
	}

	ev := &domain.MessageEvent{
		MessageID: strconv.FormatInt(m.Chat.ID, 10) + ":" + strconv.Itoa(m.MessageID),
		ThreadID:  strconv.FormatInt(m.Chat.ID, 10),
		Body:      body,
		IsGroup:   m.Chat.IsGroup() || m.Chat.IsSuperGroup(),
		Timestamp: m.Time(),
	}
	if m.From != nil {
		ev.SenderID = strconv.FormatInt(m.From.ID, 10)
	}
	return ev, true
}

// SendMessage implements repo.Connection
func (c *Conn) SendMessage(ctx context.Context, threadID, content string) (*domain.SendReceipt, error) {
	chatID, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", threadID, err)
	}
	sent, err := c.api.Send(tgbotapi.NewMessage(chatID, content))
	if err != nil {
		return nil, fmt.Errorf("send message failed: %w", err)
	}
	return &domain.SendReceipt{
		MessageID: strconv.Itoa(sent.MessageID),
		ThreadID:  threadID,
		SentAt:    sent.Time(),
	}, nil
}

// MarkRead implements repo.Connection. The Bot API has no read receipts.
func (c *Conn) MarkRead(ctx context.Context, threadID string) error { return nil }

// GetUserInfo implements repo.Connection. Users are looked up through
// their private chat with the bot.
func (c *Conn) GetUserInfo(ctx context.Context, ids []string) ([]domain.UserInfo, error) {
	out := make([]domain.UserInfo, 0, len(ids))
	for _, id := range ids {
		chat, err := c.chat(id)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
		if name == "" {
			name = chat.UserName
		}
		out = append(out, domain.UserInfo{ID: id, Name: name})
	}
	return out, nil
}

// GetThreadInfo implements repo.Connection
func (c *Conn) GetThreadInfo(ctx context.Context, threadID string) (*domain.ThreadInfo, error) {
	chat, err := c.chat(threadID)
	if err != nil {
		return nil, err
	}
	info := &domain.ThreadInfo{
		ID:      threadID,
		Name:    chat.Title,
		IsGroup: chat.IsGroup() || chat.IsSuperGroup(),
	}
	if info.Name == "" {
		info.Name = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}

	count, err := c.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chat.ID},
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("chat", threadID).Msg("member count")
	} else {
		info.ParticipantCount = count
	}
	return info, nil
}

func (c *Conn) chat(id string) (tgbotapi.Chat, error) {
	chatID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return tgbotapi.Chat{}, fmt.Errorf("invalid chat id %q: %w", id, err)
	}
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return tgbotapi.Chat{}, fmt.Errorf("get chat %s: %w", id, err)
	}
	return chat, nil
}

// Close implements repo.Connection
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.api.StopReceivingUpdates()
	})
	return nil
}
