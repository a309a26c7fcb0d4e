package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"materials-forecast-api/pkg/models"
	"materials-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// DemandForecastHandler 需要予測ハンドラー
type DemandForecastHandler struct {
	forecasts   *services.DemandForecastService
	diagnostics *services.DiagnosticsService
	timeout     time.Duration
}

// NewDemandForecastHandler 新しい需要予測ハンドラーを作成
func NewDemandForecastHandler(forecasts *services.DemandForecastService, diagnostics *services.DiagnosticsService, timeout time.Duration) *DemandForecastHandler {
	return &DemandForecastHandler{
		forecasts:   forecasts,
		diagnostics: diagnostics,
		timeout:     timeout,
	}
}

// RegisterRoutes /forecasting 配下のルートを登録する。generateMiddleware は POST /forecast にだけ適用。
func (h *DemandForecastHandler) RegisterRoutes(rg *gin.RouterGroup, generateMiddleware ...gin.HandlerFunc) {
	forecasting := rg.Group("/forecasting")
	{
		forecasting.GET("/forecast", h.GetForecast)
		forecasting.POST("/forecast", append(generateMiddleware, h.GenerateForecast)...)
		forecasting.GET("/forecasts", h.ListForecasts)
		forecasting.GET("/configs", h.GetForecastingConfigs)
		forecasting.PUT("/configs/:id", h.UpdateForecastingConfig)
		forecasting.GET("/historical", h.GetHistoricalData)
		forecasting.POST("/historical/import", h.ImportHistoricalData)
		forecasting.GET("/comparison", h.GetForecastComparison)
		forecasting.GET("/seasonal", h.GetSeasonalAnalysis)
		forecasting.GET("/trend", h.GetTrendAnalysis)
	}
}

func (h *DemandForecastHandler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// GetForecast キャッシュ済みの予測を返す（古ければ再生成）
func (h *DemandForecastHandler) GetForecast(c *gin.Context) {
	productID, plantID, ok := requireProductAndPlant(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	forecast, err := h.forecasts.GetForecast(ctx, productID, plantID, c.Query("configId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, forecast)
}

// GenerateForecast 予測を強制的に再生成する
func (h *DemandForecastHandler) GenerateForecast(c *gin.Context) {
	var request models.ForecastRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました: " + err.Error(),
		})
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	forecast, err := h.forecasts.GenerateForecast(ctx, request.ProductID, request.PlantID, request.ConfigID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, forecast)
}

// ListForecasts キャッシュ済みの予測一覧
func (h *DemandForecastHandler) ListForecasts(c *gin.Context) {
	respondOK(c, h.forecasts.ListForecasts())
}

// GetForecastingConfigs 予測設定の一覧
func (h *DemandForecastHandler) GetForecastingConfigs(c *gin.Context) {
	respondOK(c, h.forecasts.GetForecastingConfigs())
}

// UpdateForecastingConfig 予測設定を置き換える。パスのIDが優先。
func (h *DemandForecastHandler) UpdateForecastingConfig(c *gin.Context) {
	var cfg models.ForecastingConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました: " + err.Error(),
		})
		return
	}
	cfg.ID = c.Param("id")

	if err := h.forecasts.UpdateForecastingConfig(cfg); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, cfg)
}

// GetHistoricalData 製品×工場の履歴データ
func (h *DemandForecastHandler) GetHistoricalData(c *gin.Context) {
	productID, plantID, ok := requireProductAndPlant(c)
	if !ok {
		return
	}
	respondOK(c, h.forecasts.GetHistoricalData(productID, plantID))
}

// ImportHistoricalData アップロードされた .xlsx / .csv を履歴ストアに取り込む
func (h *DemandForecastHandler) ImportHistoricalData(c *gin.Context) {
	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	name := strings.ToLower(fileHeader.Filename)
	if !strings.HasSuffix(name, ".xlsx") && !strings.HasSuffix(name, ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "サポートされていないファイル形式です。.xlsxまたは.csvをアップロードしてください。",
		})
		return
	}

	imported, err := h.forecasts.ImportHistoricalData(file, fileHeader.Filename)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	respondOK(c, gin.H{"series": imported})
}

// GetForecastComparison アルゴリズム別の直近30日バックテスト
func (h *DemandForecastHandler) GetForecastComparison(c *gin.Context) {
	productID, plantID, ok := requireProductAndPlant(c)
	if !ok {
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	comparisons, err := h.diagnostics.GetForecastComparison(ctx, productID, plantID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, comparisons)
}

// GetSeasonalAnalysis 季節別の需要分析
func (h *DemandForecastHandler) GetSeasonalAnalysis(c *gin.Context) {
	productID, plantID, ok := requireProductAndPlant(c)
	if !ok {
		return
	}
	analysis, err := h.diagnostics.GetSeasonalAnalysis(productID, plantID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, analysis)
}

// GetTrendAnalysis 期間別のトレンド分析
func (h *DemandForecastHandler) GetTrendAnalysis(c *gin.Context) {
	productID, plantID, ok := requireProductAndPlant(c)
	if !ok {
		return
	}
	analysis, err := h.diagnostics.GetTrendAnalysis(productID, plantID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, analysis)
}
