package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/api"
	"cvbuilder/internal/config"
	"cvbuilder/internal/database"
	"cvbuilder/internal/pdf"
	"cvbuilder/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("api bootstrapping",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
	)

	db, err := database.InitDatabase(cfg.Database, logger)
	if err != nil {
		fatal(logger, "init database", err)
	}
	if err := database.Migrate(db); err != nil {
		fatal(logger, "migrate database", err)
	}
	logger.Info("database ready")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		fatal(logger, "init storage client", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		fatal(logger, "ping redis", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	cvHandler := api.NewCVHandler(
		db,
		storageClient,
		asynqClient,
		pdf.NewRodRenderer(cfg.Export.BrowserBin, cfg.Export.RenderTimeout),
		api.NewScanner(cfg.ClamAV.Address),
		redisClient,
		api.CVHandlerOptions{
			MaxUploadBytes: int64(cfg.API.MaxUploadMB) << 20,
			ExportLimit:    cfg.Export.RateLimit,
			ExportWindow:   cfg.Export.RateWindow,
			RenderTimeout:  cfg.Export.RenderTimeout,
		},
	)
	wsHandler := api.NewWsHandler(db, redisClient, logger, cfg.API.AllowedOrigins)

	router := api.NewRouter(cfg.API, logger)
	api.RegisterRoutes(router, cvHandler, wsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "serve http", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
	logger.Info("api stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
