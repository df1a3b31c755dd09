package loopback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

func TestGateway_FailNext(t *testing.T) {
	g := New(zerolog.Nop())
	boom := errors.New("boom")
	g.FailNext(boom)

	_, err := g.Connect(context.Background(), domain.Credentials{}, repo.ConnectOptions{})
	assert.ErrorIs(t, err, boom)

	conn, err := g.Connect(context.Background(), domain.Credentials{}, repo.ConnectOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSelfID, conn.SelfID())
	assert.Equal(t, 2, g.Connects())
}

func TestConn_InjectAndSend(t *testing.T) {
	g := New(zerolog.Nop())
	conn, err := g.Connect(context.Background(), domain.Credentials{}, repo.ConnectOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *domain.MessageEvent, 1)
	go conn.Listen(ctx, func(ctx context.Context, ev *domain.MessageEvent) {
		_, _ = conn.SendMessage(ctx, ev.ThreadID, "echo: "+ev.Body)
		got <- ev
	})

	require.NoError(t, g.Inject(ctx, &domain.MessageEvent{ThreadID: "t1", SenderID: "u1", Body: "hi"}))

	ev := <-got
	assert.NotEmpty(t, ev.MessageID)
	assert.False(t, ev.Timestamp.IsZero())

	sent := g.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "t1", sent[0].ThreadID)
	assert.Equal(t, "echo: hi", sent[0].Content)
}

func TestConn_BreakEndsListen(t *testing.T) {
	g := New(zerolog.Nop())
	conn, err := g.Connect(context.Background(), domain.Credentials{}, repo.ConnectOptions{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- conn.Listen(context.Background(), func(context.Context, *domain.MessageEvent) {})
	}()

	broken := errors.New("stream reset")
	g.Active().Break(broken)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, broken)
	case <-time.After(time.Second):
		t.Fatal("listen did not return")
	}
}

func TestConn_CloseReleasesActive(t *testing.T) {
	g := New(zerolog.Nop())
	conn, err := g.Connect(context.Background(), domain.Credentials{}, repo.ConnectOptions{})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Nil(t, g.Active())

	err = g.Inject(context.Background(), &domain.MessageEvent{ThreadID: "t"})
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = conn.SendMessage(context.Background(), "t", "x")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}
