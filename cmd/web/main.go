// Package main runs the registration web server: the confirmation page a
// user opens from their DM link, plus the admin API over the directory.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoneshift/bot/config"
	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/internal/middleware"
	"github.com/zoneshift/bot/internal/web"
	"github.com/zoneshift/bot/pkg/database"
	"github.com/zoneshift/bot/pkg/redis"
	"github.com/zoneshift/bot/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(false)
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

	registerHandler, err := web.NewHandler(store, logger)
	if err != nil {
		logger.Fatal("web handler", zap.Error(err))
	}
	adminHandler := web.NewAdminHandler(store, logger)
	tokens := middleware.NewTokenService(cfg.Admin.JWTSecret, cfg.Admin.ExpireHours)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	router.GET("/healthz", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.GET("/register/:link_id", registerHandler.ShowRegisterPage)
	router.POST("/register", registerHandler.Confirm)

	// Admin API (JWT required; disabled entirely without a secret)
	if cfg.Admin.JWTSecret != "" {
		admin := router.Group("/admin")
		admin.Use(middleware.AdminJWT(tokens))
		{
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/pending", adminHandler.PendingCount)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
