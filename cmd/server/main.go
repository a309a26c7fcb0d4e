package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "materials-forecast-api/configs"
	"materials-forecast-api/internal/bootstrap"

	"github.com/gin-gonic/gin"
)

func main() {
	// .envファイルを読み込み
	envLoaded := config.LoadEnvFile()

	// 設定の読み込み
	cfg := config.LoadConfig()
	logger := bootstrap.NewLogger(cfg.LogLevel)
	if !envLoaded {
		logger.Warn(".env file not found or could not be loaded")
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// サービスの初期化
	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize services")
	}
	defer app.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: bootstrap.NewRouter(cfg, app),
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting materials forecast API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	logger.Info("server stopped")
}
