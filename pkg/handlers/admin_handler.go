package handlers

import (
	"net/http"
	"sync/atomic"

	config "materials-forecast-api/configs"
	"materials-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// isMaintenanceMode はサーバーがメンテナンスモードかどうかを示します。
var isMaintenanceMode atomic.Bool

// AdminHandler は管理者向け操作のハンドラです。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string
	forecasts     *services.DemandForecastService
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, forecasts *services.DemandForecastService) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		forecasts:     forecasts,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// InvalidateRequest はキャッシュ削除のリクエストです。productId と plantId を省略すると全件削除。
type InvalidateRequest struct {
	AdminCredentials
	ProductID string `json:"productId"`
	PlantID   string `json:"plantId"`
	ConfigID  string `json:"configId"`
}

// authorize は認証情報を確認し、失敗時はレスポンスを書き込みます。
func (h *AdminHandler) authorize(c *gin.Context, input AdminCredentials) bool {
	// パスワード未設定の環境では管理APIを無効にする
	if h.AdminPassword == "" || input.Username != h.AdminUsername || input.Password != h.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if !h.authorize(c, input) {
		return
	}

	isMaintenanceMode.Store(true)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if !h.authorize(c, input) {
		return
	}

	isMaintenanceMode.Store(false)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode stopped"})
}

// InvalidateForecasts は予測キャッシュを削除します。
func (h *AdminHandler) InvalidateForecasts(c *gin.Context) {
	var input InvalidateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if !h.authorize(c, input.AdminCredentials) {
		return
	}

	if (input.ProductID == "") != (input.PlantID == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId and plantId must be given together"})
		return
	}
	if input.ProductID == "" {
		removed := h.forecasts.InvalidateAll()
		c.JSON(http.StatusOK, gin.H{"removed": removed})
		return
	}
	configID := input.ConfigID
	if configID == "" {
		configID = services.DefaultConfigID
	}
	removed := 0
	if h.forecasts.Invalidate(input.ProductID, input.PlantID, configID) {
		removed = 1
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": isMaintenanceMode.Load()})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func HealthCheck(c *gin.Context) {
	if isMaintenanceMode.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
