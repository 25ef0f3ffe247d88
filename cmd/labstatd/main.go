package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/api"
	"github.com/formype/lax-qlpm/internal/notification"
	"github.com/formype/lax-qlpm/internal/session"
	"github.com/formype/lax-qlpm/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", configPath))

	// Backend selection happens exactly once, here.
	appStore, err := store.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize data store", zap.Error(err))
	}
	logger.Info("data store initialized", zap.Bool("remote", appStore.IsRemote()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := appStore.CheckAndSeedData(ctx); err != nil {
		if errors.Is(err, store.ErrPermissionDenied) {
			logger.Error("database write access denied; fix the access rules and restart", zap.Error(err))
		} else {
			logger.Error("seeding failed", zap.Error(err))
		}
	}

	sessions := session.NewManager(cfg.Session.TTL)

	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" && appStore.IsRemote() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore.DB(), webpushOptions, logger)
		pool.Start(ctx)
		logger.Info("push notification workers started", zap.Int("size", cfg.WorkerPool.Size))
	}

	router := api.NewRouter(cfg, appStore, sessions, webpushOptions, pool, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
