package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"materials-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// statusForError サービス層のエラーをHTTPステータスに変換する
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrConfigNotFound),
		errors.Is(err, services.ErrNoHistoricalData):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUnsupportedAlgorithm),
		errors.Is(err, services.ErrInvalidWeights),
		errors.Is(err, services.ErrInvalidConfig),
		errors.Is(err, services.ErrEmptySeries):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrHistoryAlreadyLoaded):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError エラーを {"success": false, "error": "..."} で返す
func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// respondOK データを {"success": true, "data": ...} で返す
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// requireProductAndPlant productId と plantId のクエリを取り出す
func requireProductAndPlant(c *gin.Context) (string, string, bool) {
	productID := strings.TrimSpace(c.Query("productId"))
	plantID := strings.TrimSpace(c.Query("plantId"))
	if productID == "" || plantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "productId と plantId は必須です",
		})
		return "", "", false
	}
	return productID, plantID, true
}
