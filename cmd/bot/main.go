// Package main runs the Discord gateway process: it consumes message and
// reaction events, converts bracketed time expressions, and drives the
// registration handshake.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoneshift/bot/config"
	"github.com/zoneshift/bot/internal/bot"
	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/internal/discord"
	"github.com/zoneshift/bot/internal/handshake"
	"github.com/zoneshift/bot/internal/parse"
	"github.com/zoneshift/bot/internal/pending"
	"github.com/zoneshift/bot/internal/reaction"
	"github.com/zoneshift/bot/pkg/database"
	"github.com/zoneshift/bot/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(true)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	store := directory.NewCachedStore(
		directory.NewRepository(pool, cfg.Registration.Timeout), rdb.Client, logger)

	client := discord.NewClient(cfg.Discord.APIBase, cfg.Discord.BotToken, logger)
	registrar := handshake.NewService(store, client, cfg.Registration.AppURL, logger)
	waiters := pending.NewRegistry(store, client,
		cfg.Registration.PollInterval, cfg.Registration.Timeout, logger)
	storm := reaction.NewRegistry()

	handler := bot.NewHandler(client, store, parse.New(), registrar, waiters, nil, storm, logger)
	controller := reaction.NewController(client, handler, logger)
	handler.SetReactionHandler(controller)

	gateway := discord.NewGateway(cfg.Discord.GatewayURL, cfg.Discord.BotToken,
		handler, handler.SetBotUser, logger)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- gateway.Run(runCtx) }()
	logger.Info("bot started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("gateway", zap.Error(err))
	}

	cancel()
	waiters.StopAll()
	logger.Info("bot stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
