package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/conf"
	"github.com/botdeck/botdeck/internal/mcp"
)

var version = "dev"

func main() {
	// stdout carries the protocol, so logs go to stderr
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("app", "botctl-mcp").Logger()

	cfg, err := conf.LoadMCP()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(mcp.NewClient(cfg.APIURL), version)
	logger.Info().Str("api", cfg.APIURL).Msg("serving MCP over stdio")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("mcp server")
	}
}
