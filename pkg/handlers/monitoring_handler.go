package handlers

import (
	"fmt"
	"net/http"

	"materials-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// dashboardPeriods period クエリと集計時間数
var dashboardPeriods = map[string]int{
	"1h":  1,
	"24h": 24,
	"7d":  24 * 7,
}

// MonitoringHandler リクエストログ集計のハンドラー
type MonitoringHandler struct {
	monitoring *services.MonitoringService
}

// NewMonitoringHandler 新しいモニタリングハンドラーを作成
func NewMonitoringHandler(monitoring *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{monitoring: monitoring}
}

// GetLogs 指定期間（1h / 24h / 7d、既定 24h）のリクエスト集計を返す
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	period := c.DefaultQuery("period", "24h")
	hours, ok := dashboardPeriods[period]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("period は 1h, 24h, 7d のいずれかを指定してください: %q", period),
		})
		return
	}
	respondOK(c, h.monitoring.GetDashboardData(hours))
}
