package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/api"
	"github.com/botdeck/botdeck/internal/biz"
	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
	"github.com/botdeck/botdeck/internal/conf"
	"github.com/botdeck/botdeck/internal/data"
	"github.com/botdeck/botdeck/internal/infra/gateway/feishu"
	"github.com/botdeck/botdeck/internal/infra/gateway/loopback"
	"github.com/botdeck/botdeck/internal/infra/gateway/telegram"
	"github.com/botdeck/botdeck/internal/infra/llm"
	applog "github.com/botdeck/botdeck/internal/infra/log"
	"github.com/botdeck/botdeck/internal/infra/metrics"
	"github.com/botdeck/botdeck/internal/infra/ws"
	"github.com/botdeck/botdeck/internal/service"
)

func main() {
	cfg, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := applog.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("botd exited")
	}
}

func run(cfg *conf.Config, logger zerolog.Logger) error {
	d, err := data.NewData(cfg.DBPath)
	if err != nil {
		return err
	}
	defer d.Close()
	store := data.NewStore(d)
	logger.Info().Str("path", cfg.DBPath).Msg("database opened")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := ws.NewHub(logger, ws.WithClientCount(m.ClientsChanged))
	defer hub.Close()

	var (
		cooldowns repo.CooldownStore
		tracker   *usecase.CooldownTracker
		rdb       *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = data.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cooldowns = data.NewRedisCooldownStore(rdb, cfg.RedisPrefix)
		logger.Info().Msg("cooldowns stored in redis")
	} else {
		tracker = usecase.NewCooldownTracker()
		cooldowns = tracker
	}

	uc := biz.NewUsecases(store, hub, logger)
	if err := registerCommands(cfg, uc.Registry, logger); err != nil {
		return err
	}
	if _, err := uc.Registry.Seed(context.Background()); err != nil {
		return err
	}

	gw, injector, err := newGateway(cfg.Gateway, logger)
	if err != nil {
		return err
	}

	core := service.NewBotCore(service.Deps{
		Gateway:     gw,
		Store:       store,
		Usecases:    uc,
		Cooldowns:   cooldowns,
		Notifier:    hub,
		Metrics:     m,
		Logger:      logger,
		SettleDelay: cfg.SettleDelay,
	})

	sweepers := map[string]service.Sweeper{"dedupe": core.Router()}
	if tracker != nil {
		sweepers["cooldowns"] = tracker
	}
	sched := service.NewScheduler(core, hub, sweepers, cfg.SweepInterval, cfg.StatsInterval, logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	deps := api.Deps{
		Bot:      core,
		Store:    store,
		Activity: uc.Activity,
		Notifier: hub,
		Injector: injector,
		Hub:      hub,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health: func(ctx context.Context) error {
			if err := d.Ping(); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
		Logger: logger,
	}
	srv := api.NewServer(deps)

	if cfg.ResumeSession {
		resume(core, store, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.HTTPAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := core.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("stop bot")
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("shutdown http server")
	}
	return nil
}

func registerCommands(cfg *conf.Config, reg *usecase.Registry, logger zerolog.Logger) error {
	handlers := usecase.Builtins()

	scripts, err := usecase.LoadScripts(cfg.ScriptsDir, logger)
	if err != nil {
		return err
	}
	handlers = append(handlers, scripts...)

	if cfg.AskEnabled() {
		handlers = append(handlers, usecase.NewAskCommand(
			llm.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIMaxTokens)))
	}

	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			if errors.Is(err, usecase.ErrDuplicateCommand) {
				logger.Warn().Err(err).Msg("skip command")
				continue
			}
			return err
		}
	}
	logger.Info().Int("commands", len(reg.Names())).Int("scripts", len(scripts)).Msg("commands registered")
	return nil
}

func newGateway(name string, logger zerolog.Logger) (repo.Gateway, api.Injector, error) {
	switch name {
	case conf.GatewayLoopback:
		gw := loopback.New(logger)
		return gw, gw, nil
	case conf.GatewayFeishu:
		return feishu.New(logger), nil, nil
	case conf.GatewayTelegram:
		return telegram.New(logger), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown gateway %q", name)
}

// resume starts the bot from the stored session state, if any
func resume(core *service.BotCore, store *repo.Store, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := store.Session.Get(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("load session")
		return
	}
	if sess.AppState == "" {
		logger.Info().Msg("no stored session to resume")
		return
	}

	creds := domain.Credentials{Type: domain.CredentialAppState, AppState: sess.AppState}
	if err := core.Start(ctx, creds); err != nil {
		logger.Error().Err(err).Msg("resume session")
		return
	}
	logger.Info().Msg("session resumed")
}
