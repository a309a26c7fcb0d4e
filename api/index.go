package handler

import (
	"net/http"
	"sync"

	config "materials-forecast-api/configs"
	"materials-forecast-api/internal/bootstrap"

	"github.com/gin-gonic/gin"
)

var (
	app     *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では sync.Once で一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		// 環境変数はVercelの設定から読み込まれるため godotenv は使わない
		cfg := config.LoadConfig()
		// 関数インスタンスの書き込み先が読み取り専用のためboltストアは使わない
		cfg.ConfigDBPath = ""
		gin.SetMode(gin.ReleaseMode)

		logger := bootstrap.NewLogger(cfg.LogLevel)
		services, err := bootstrap.New(cfg, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize services in serverless function")
			initErr = err
			return
		}
		app = bootstrap.NewRouter(cfg, services)
		logger.Info("serverless application initialized")
	})
	return app, initErr
}

// Handler Vercelのエントリーポイント
func Handler(w http.ResponseWriter, r *http.Request) {
	engine, err := setupApp()
	if err != nil {
		http.Error(w, `{"success":false,"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, r)
}
