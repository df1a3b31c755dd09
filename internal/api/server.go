package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
	"github.com/botdeck/botdeck/internal/service"
)

// Bot is the lifecycle surface the API drives
type Bot interface {
	Start(ctx context.Context, creds domain.Credentials) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	SendMessage(ctx context.Context, threadID, text string) (*domain.SendReceipt, error)
	Stats(ctx context.Context) (*domain.Stats, error)
	Status() service.Status
}

// Injector feeds synthetic inbound events; only the loopback gateway has one
type Injector interface {
	Inject(ctx context.Context, ev *domain.MessageEvent) error
}

// Deps are the collaborators of a Server
type Deps struct {
	Bot      Bot
	Store    *repo.Store
	Activity *usecase.ActivityUsecase
	Notifier repo.Notifier
	Injector Injector     // optional
	Hub      http.Handler // optional, mounted at /ws
	Metrics  http.Handler // optional, mounted at /metrics
	Health   func(ctx context.Context) error
	Logger   zerolog.Logger
}

// Server is the REST control surface
type Server struct {
	bot      Bot
	store    *repo.Store
	activity *usecase.ActivityUsecase
	notifier repo.Notifier
	injector Injector
	health   func(ctx context.Context) error
	logger   zerolog.Logger

	router chi.Router
	srv    *http.Server
}

// NewServer creates the server and its routes
func NewServer(d Deps) *Server {
	if d.Notifier == nil {
		d.Notifier = repo.NopNotifier{}
	}
	if d.Health == nil {
		d.Health = func(context.Context) error { return nil }
	}
	s := &Server{
		bot:      d.Bot,
		store:    d.Store,
		activity: d.Activity,
		notifier: d.Notifier,
		injector: d.Injector,
		health:   d.Health,
		logger:   d.Logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	if d.Hub != nil {
		r.Method(http.MethodGet, "/ws", d.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/stats", s.handleStats)
		r.Get("/config", s.handleGetConfig)
		r.Patch("/config", s.handlePatchConfig)
		r.Get("/session", s.handleSession)

		r.Get("/logs", s.handleListLogs)
		r.Delete("/logs", s.handleClearLogs)

		r.Get("/commands", s.handleListCommands)
		r.Patch("/commands/{id}", s.handlePatchCommand)

		r.Get("/users", s.handleListUsers)
		r.Get("/users/{id}", s.handleGetUser)
		r.Patch("/users/{id}", s.handlePatchUser)

		r.Get("/threads", s.handleListThreads)
		r.Get("/threads/{id}", s.handleGetThread)
		r.Patch("/threads/{id}", s.handlePatchThread)

		r.Route("/bot", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/restart", s.handleRestart)
			r.Post("/send", s.handleSend)
			r.Post("/simulate", s.handleSimulate)
		})
	})

	s.router = r
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and blocks until the server stops
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("HTTP server started")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// errBadRequest marks malformed request bodies
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrNoCredentials),
		errors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSONStatus(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
