package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

const defaultLogLimit = 100

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.bot.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bot.Status())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Config.Get(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, cfg)
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConfigPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	cfg, err := s.store.Config.Update(r.Context(), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	details, _ := json.Marshal(patch)
	s.activity.Info(r.Context(), "Bot configuration updated", string(details))
	writeJSON(w, cfg)
}

// sessionView is the session with credentials redacted
type sessionView struct {
	AppState         *string          `json:"appState"`
	Username         string           `json:"username,omitempty"`
	UserID           string           `json:"userId,omitempty"`
	IsConnected      bool             `json:"isConnected"`
	LastConnected    *time.Time       `json:"lastConnected"`
	ConnectionHealth int              `json:"connectionHealth"`
	State            domain.ConnState `json:"state"`
	Attempts         int              `json:"reconnectAttempts"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Session.Get(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := s.bot.Status()
	view := sessionView{
		Username:         sess.Username,
		UserID:           sess.UserID,
		IsConnected:      sess.IsConnected,
		ConnectionHealth: sess.ConnectionHealth,
		State:            status.State,
		Attempts:         status.Attempts,
	}
	if sess.AppState != "" {
		hidden := "[HIDDEN]"
		view.AppState = &hidden
	}
	if !sess.LastConnected.IsZero() {
		view.LastConnected = &sess.LastConnected
	}
	writeJSON(w, view)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := repo.LogFilter{Limit: defaultLogLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, v))
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("type"); v != "" {
		t := domain.LogType(v)
		if !t.Valid() {
			s.writeError(w, fmt.Errorf("%w: invalid log type %q", errBadRequest, v))
			return
		}
		filter.Type = t
	}

	logs, err := s.store.Logs.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, logs)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Logs.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := s.store.Commands.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, cmds)
}

func (s *Server) handlePatchCommand(w http.ResponseWriter, r *http.Request) {
	var patch domain.CommandPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	if patch.Cooldown != nil && *patch.Cooldown < 0 {
		s.writeError(w, fmt.Errorf("%w: cooldown must not be negative", errBadRequest))
		return
	}
	cmd, err := s.store.Commands.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifier.Notify(repo.NotifyCommand, cmd)
	writeJSON(w, cmd)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.Users.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, u)
}

func (s *Server) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	var patch domain.UserPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	u, err := s.store.Users.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifier.Notify(repo.NotifyUser, u)
	writeJSON(w, u)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.store.Threads.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, threads)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Threads.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handlePatchThread(w http.ResponseWriter, r *http.Request) {
	var patch domain.ThreadPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.store.Threads.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.notifier.Notify(repo.NotifyThread, t)
	writeJSON(w, t)
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decode(r, &creds); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.bot.Start(r.Context(), creds); err != nil {
		// invalid credentials are already recorded by the bot
		if statusFor(err) != http.StatusBadRequest {
			s.activity.Error(r.Context(), "Failed to start bot", err.Error())
		}
		s.writeError(w, err)
		return
	}
	s.activity.Info(r.Context(), "Bot start initiated", "Login type: "+string(creds.Type))
	writeJSON(w, actionResponse{Success: true, Message: "Bot starting..."})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.Stop(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, actionResponse{Success: true, Message: "Bot stopped"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.bot.Restart(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.activity.Info(r.Context(), "Bot restarted", "")
	writeJSON(w, actionResponse{Success: true, Message: "Bot restarting..."})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThreadID string `json:"threadId"`
		Message  string `json:"message"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ThreadID == "" || req.Message == "" {
		s.writeError(w, fmt.Errorf("%w: threadId and message required", errBadRequest))
		return
	}

	receipt, err := s.bot.SendMessage(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "receipt": receipt})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if s.injector == nil {
		s.writeError(w, fmt.Errorf("%w: simulation needs the loopback gateway", domain.ErrNotFound))
		return
	}

	var ev domain.MessageEvent
	if err := decode(r, &ev); err != nil {
		s.writeError(w, err)
		return
	}
	if ev.ThreadID == "" || ev.SenderID == "" {
		s.writeError(w, fmt.Errorf("%w: threadId and senderId required", errBadRequest))
		return
	}

	if err := s.injector.Inject(r.Context(), &ev); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "messageId": ev.MessageID})
}
