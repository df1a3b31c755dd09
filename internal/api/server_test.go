package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdeck/botdeck/internal/biz"
	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
	"github.com/botdeck/botdeck/internal/data"
	"github.com/botdeck/botdeck/internal/infra/gateway/loopback"
	"github.com/botdeck/botdeck/internal/service"
)

type captureNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *captureNotifier) Notify(kind string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *captureNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.kinds...)
}

type testEnv struct {
	srv      *httptest.Server
	core     *service.BotCore
	gw       *loopback.Gateway
	store    *repo.Store
	notifier *captureNotifier
}

func newTestEnv(t *testing.T, health func(context.Context) error) *testEnv {
	t.Helper()

	d, err := data.NewData(data.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	store := data.NewStore(d)
	uc := biz.NewUsecases(store, nil, zerolog.Nop())
	for _, h := range usecase.Builtins() {
		require.NoError(t, uc.Registry.Register(h))
	}
	_, err = uc.Registry.Seed(context.Background())
	require.NoError(t, err)

	gw := loopback.New(zerolog.Nop())
	core := service.NewBotCore(service.Deps{
		Gateway:     gw,
		Store:       store,
		Usecases:    uc,
		Logger:      zerolog.Nop(),
		SettleDelay: time.Millisecond,
	})
	t.Cleanup(func() { core.Stop(context.Background()) })

	n := &captureNotifier{}
	s := NewServer(Deps{
		Bot:      core,
		Store:    store,
		Activity: uc.Activity,
		Notifier: n,
		Injector: gw,
		Health:   health,
		Logger:   zerolog.Nop(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: ts, core: core, gw: gw, store: store, notifier: n}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	code, _ := e.do(t, http.MethodPost, "/api/bot/start", map[string]string{
		"type":     "appState",
		"appState": `{"token":"x"}`,
	})
	require.Equal(t, http.StatusOK, code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	code, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	env = newTestEnv(t, func(context.Context) error { return errors.New("db gone") })
	code, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStartWithInvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	code, body := env.do(t, http.MethodPost, "/api/bot/start", map[string]string{
		"type":     "appState",
		"appState": "{not json",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "invalid AppState JSON format")
	assert.Equal(t, 0, env.gw.Connects())
}

func TestStartStopLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.do(t, http.MethodPost, "/api/bot/start", map[string]string{
		"type":     "appState",
		"appState": `{"token":"x"}`,
	})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"success":true,"message":"Bot starting..."}`, string(body))

	code, _ = env.do(t, http.MethodPost, "/api/bot/start", map[string]string{
		"type":     "appState",
		"appState": `{"token":"x"}`,
	})
	assert.Equal(t, http.StatusConflict, code)

	code, body = env.do(t, http.MethodGet, "/api/bot/status", nil)
	require.Equal(t, http.StatusOK, code)
	var status service.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, domain.StateConnected, status.State)

	code, body = env.do(t, http.MethodPost, "/api/bot/stop", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"success":true,"message":"Bot stopped"}`, string(body))

	logs, err := env.store.Logs.List(context.Background(), repo.LogFilter{})
	require.NoError(t, err)
	var msgs []string
	for _, l := range logs {
		msgs = append(msgs, l.Message)
	}
	assert.Contains(t, msgs, "Bot start initiated")
}

func TestRestartWithoutCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	code, _ := env.do(t, http.MethodPost, "/api/bot/restart", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestSessionHidesAppState(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, code)
	var before map[string]any
	require.NoError(t, json.Unmarshal(body, &before))
	assert.Nil(t, before["appState"])

	env.start(t)

	code, body = env.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, code)
	var after map[string]any
	require.NoError(t, json.Unmarshal(body, &after))
	assert.Equal(t, "[HIDDEN]", after["appState"])
	assert.Equal(t, true, after["isConnected"])
	assert.NotContains(t, string(body), "token")
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.do(t, http.MethodPost, "/api/bot/send", map[string]string{"threadId": "t1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "threadId and message required")

	code, _ = env.do(t, http.MethodPost, "/api/bot/send", map[string]string{"threadId": "t1", "message": "hi"})
	assert.Equal(t, http.StatusConflict, code)

	env.start(t)
	code, _ = env.do(t, http.MethodPost, "/api/bot/send", map[string]string{"threadId": "t1", "message": "hi"})
	require.Equal(t, http.StatusOK, code)

	sent := env.gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "t1", sent[0].ThreadID)
	assert.Equal(t, "hi", sent[0].Content)
}

func TestSimulateRunsCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	ev := map[string]any{"threadId": "t1", "senderId": "u1", "body": "/ping"}
	code, _ := env.do(t, http.MethodPost, "/api/bot/simulate", ev)
	assert.Equal(t, http.StatusConflict, code)

	env.start(t)
	code, _ = env.do(t, http.MethodPost, "/api/bot/simulate", ev)
	require.Equal(t, http.StatusOK, code)

	sent := env.gw.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "Pong!")

	code, body := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(1), stats.MessagesReceived)
	assert.Equal(t, int64(1), stats.CommandsExecuted)
	assert.Equal(t, 1, stats.TotalUsers)

	code, _ = env.do(t, http.MethodGet, "/api/users/u1", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, "/api/threads/t1", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestSimulateWithoutInjector(t *testing.T) {
	env := newTestEnv(t, nil)
	s := NewServer(Deps{Bot: env.core, Store: env.store, Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/bot/simulate", bytes.NewReader([]byte(`{"threadId":"t","senderId":"u"}`)))
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchConfig(t *testing.T) {
	env := newTestEnv(t, nil)

	code, body := env.do(t, http.MethodPatch, "/api/config", map[string]any{"prefix": "!"})
	require.Equal(t, http.StatusOK, code)
	var cfg domain.BotConfig
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, "!", cfg.Prefix)

	code, _ = env.do(t, http.MethodPatch, "/api/config", "not an object")
	assert.Equal(t, http.StatusBadRequest, code)

	logs, err := env.store.Logs.List(context.Background(), repo.LogFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "Bot configuration updated", logs[0].Message)
	assert.Contains(t, logs[0].Details, `"prefix":"!"`)
}

func TestPatchCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	row, err := env.store.Commands.GetByName(context.Background(), "ping")
	require.NoError(t, err)

	code, body := env.do(t, http.MethodPatch, "/api/commands/"+row.ID, map[string]any{"isEnabled": false, "cooldown": 10})
	require.Equal(t, http.StatusOK, code)
	var cmd domain.Command
	require.NoError(t, json.Unmarshal(body, &cmd))
	assert.False(t, cmd.IsEnabled)
	assert.Equal(t, 10, cmd.Cooldown)
	assert.Contains(t, env.notifier.seen(), repo.NotifyCommand)

	code, _ = env.do(t, http.MethodPatch, "/api/commands/"+row.ID, map[string]any{"cooldown": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPatch, "/api/commands/missing", map[string]any{"isEnabled": true})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLogsFilterAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	uc := usecase.NewActivityUsecase(env.store.Logs, nil, zerolog.Nop())
	uc.Info(ctx, "one", "")
	uc.Error(ctx, "two", "")
	uc.Info(ctx, "three", "")

	code, body := env.do(t, http.MethodGet, "/api/logs?type=error", nil)
	require.Equal(t, http.StatusOK, code)
	var logs []domain.ActivityLog
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "two", logs[0].Message)

	code, body = env.do(t, http.MethodGet, "/api/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.Len(t, logs, 2)

	code, _ = env.do(t, http.MethodGet, "/api/logs?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodGet, "/api/logs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodDelete, "/api/logs", nil)
	require.Equal(t, http.StatusOK, code)
	n, err := env.store.Logs.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPatchUserAndThread(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.store.Users.Touch(ctx, "u1", "u1", time.Now())
	require.NoError(t, err)
	_, err = env.store.Threads.Touch(ctx, repo.ThreadTouch{ID: "t1", Name: "Chat", At: time.Now()})
	require.NoError(t, err)

	code, body := env.do(t, http.MethodPatch, "/api/users/u1", map[string]any{"isBlocked": true})
	require.Equal(t, http.StatusOK, code)
	var u domain.User
	require.NoError(t, json.Unmarshal(body, &u))
	assert.True(t, u.IsBlocked)

	code, body = env.do(t, http.MethodPatch, "/api/threads/t1", map[string]any{"isMuted": true})
	require.Equal(t, http.StatusOK, code)
	var th domain.Thread
	require.NoError(t, json.Unmarshal(body, &th))
	assert.True(t, th.IsMuted)

	code, _ = env.do(t, http.MethodGet, "/api/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, code)
	var users []domain.User
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Len(t, users, 1)

	assert.Contains(t, env.notifier.seen(), repo.NotifyUser)
	assert.Contains(t, env.notifier.seen(), repo.NotifyThread)
}
