package bootstrap

import (
	config "materials-forecast-api/configs"
	"materials-forecast-api/pkg/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter ルーターとミドルウェアを組み立てる
func NewRouter(cfg *config.Config, app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// ミドルウェアの登録
	r.Use(app.Monitoring.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("X-API-KEY")
	r.Use(cors.New(corsConfig))

	forecastHandler := handlers.NewDemandForecastHandler(app.Forecasts, app.Diagnostics, cfg.ForecastTimeout)
	adminHandler := handlers.NewAdminHandler(cfg, app.Forecasts)
	monitoringHandler := handlers.NewMonitoringHandler(app.Monitoring)
	limiter := handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// ヘルスチェックとメトリクス
	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(handlers.APIKeyAuth(cfg.APIKey))
	{
		forecastHandler.RegisterRoutes(v1, limiter.Middleware())

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
			admin.POST("/cache/invalidate", adminHandler.InvalidateForecasts)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	app.Logger.WithFields(logrus.Fields{
		"configs":  len(app.Configs.List()),
		"series":   len(app.History.Keys()),
		"cacheTTL": cfg.ForecastCacheTTL.String(),
	}).Debug("router ready")
	return r
}
