// Command fokabot runs the chat bot: it connects to the chat server, joins
// every public channel, serves commands and orchestrates tournament matches.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/config"
	"github.com/xnyo/fokabot/internal/internalapi"
	"github.com/xnyo/fokabot/internal/kvstore"
	"github.com/xnyo/fokabot/internal/periodic"
	"github.com/xnyo/fokabot/internal/plugins"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("starting fokabot", "nickname", cfg.BotNickname)

	store, err := kvstore.New(kvstore.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		Database: cfg.RedisDatabase,
	}, logger.With("component", "kvstore"))
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := bot.New(cfg, store, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := plugins.Load(b, cfg.Plugins); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers: pub/sub ingress and the cache purge loop.
	go func() {
		if err := b.Ingress.Run(ctx); err != nil {
			logger.Error("pubsub ingress stopped", "error", err)
		}
	}()
	go periodic.Every(ctx, time.Minute, "privcache-purge", func(ctx context.Context) error {
		b.PrivCache.Purge()
		return nil
	}, logger.With("component", "periodic"))

	api := internalapi.New(
		b,
		fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		cfg.InternalAPISecret,
		logger.With("component", "internalapi"),
	)
	if err := api.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn("internal api shutdown", "error", err)
		}
	}()

	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}
