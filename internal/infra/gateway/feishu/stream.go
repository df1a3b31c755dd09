package feishu

import (
	"context"
	"errors"
	"sync"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"
)

// stream is the event websocket of one app. The SDK client reconnects on
// its own and ignores ctx once connected, so a stream is started at most
// once and hands events to whichever Conn is attached at the time.
type stream struct {
	appID  string
	logger zerolog.Logger

	mu       sync.Mutex
	running  bool
	attached *Conn
}

func newStream(appID string, logger zerolog.Logger) *stream {
	return &stream{appID: appID, logger: logger.With().Str("app_id", appID).Logger()}
}

// attach makes c the receiver of every following event
func (s *stream) attach(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = c
}

// detach clears c unless another Conn has attached since
func (s *stream) detach(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached == c {
		s.attached = nil
	}
}

func (s *stream) current() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// forward is the dispatcher callback. The SDK acks the event once it returns.
func (s *stream) forward(_ context.Context, event *larkim.P2MessageReceiveV1) error {
	c := s.current()
	if c == nil {
		s.logger.Debug().Msg("no listener attached, dropping event")
		return nil
	}
	ev, ok := toMessageEvent(event, c.selfID)
	if !ok {
		return nil
	}
	c.enqueue(ev)
	return nil
}

// run starts the websocket client unless it is already running
func (s *stream) run(secret string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	handler := dispatcher.NewEventDispatcher("", "").OnP2MessageReceiveV1(s.forward)
	cli := larkws.NewClient(s.appID, secret,
		larkws.WithEventHandler(handler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)
	go func() {
		// Start only returns when the first dial fails
		err := cli.Start(context.Background())
		if err == nil {
			err = errors.New("websocket closed")
		}
		s.stopped(err)
	}()
	s.logger.Info().Msg("websocket started")
}

// stopped lets the next Listen start a fresh client and fails the attached Conn
func (s *stream) stopped(err error) {
	s.mu.Lock()
	s.running = false
	c := s.attached
	s.mu.Unlock()

	s.logger.Error().Err(err).Msg("websocket stopped")
	if c != nil {
		c.fail(err)
	}
}
