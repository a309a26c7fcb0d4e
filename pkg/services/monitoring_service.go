package services

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	forecastGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_generations_total",
		Help: "Number of forecast generations by algorithm and result.",
	}, []string{"algorithm", "result"})

	forecastCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_cache_requests_total",
		Help: "Forecast cache lookups by result (hit or miss).",
	}, []string{"result"})

	forecastGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forecast_generation_duration_seconds",
		Help:    "Time spent generating a forecast.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"algorithm"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecast_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})
)

// maxLogEntries メモリに保持するリクエストログの上限
const maxLogEntries = 10000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
type MonitoringService struct {
	logs   []LogEntry
	mu     sync.RWMutex
	logger *logrus.Logger
	now    func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService(logger *logrus.Logger) *MonitoringService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MonitoringService{
		logs:   make([]LogEntry, 0),
		logger: logger,
		now:    time.Now,
	}
}

// LogRequest はリクエストを記録します。
// 上限の2倍に達した時点で新しい maxLogEntries 件だけを残します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) >= 2*maxLogEntries {
		kept := make([]LogEntry, maxLogEntries, 2*maxLogEntries)
		copy(kept, s.logs[len(s.logs)-maxLogEntries:])
		s.logs = kept
	}
}

// recentLogs 集計対象となる新しい maxLogEntries 件。呼び出し側でロックを取ること。
func (s *MonitoringService) recentLogs() []LogEntry {
	if len(s.logs) > maxLogEntries {
		return s.logs[len(s.logs)-maxLogEntries:]
	}
	return s.logs
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		c.Next()

		path := c.Request.URL.Path
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  status,
			"latency": elapsed.String(),
			"client":  c.ClientIP(),
		}).Info("request handled")

		// モニタリング自身とメトリクス取得は集計対象外
		if strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}
		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   status,
			ResponseTime: elapsed,
		})
	}
}

// EndpointLatency エンドポイントごとの平均応答時間（ミリ秒）
type EndpointLatency struct {
	Endpoint     string `json:"endpoint"`
	ResponseTime int64  `json:"responseTime"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	TotalRequests    int               `json:"totalRequests"`
	Endpoints        map[string]int    `json:"endpoints"`
	StatusCodes      map[string]int    `json:"statusCodes"`
	AvgResponseTimes []EndpointLatency `json:"avgResponseTimes"`
	RecentErrors     []LogEntry        `json:"recentErrors"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := s.now().Add(-time.Duration(periodHours) * time.Hour)
	data := DashboardData{
		Endpoints: make(map[string]int),
		StatusCodes: map[string]int{
			"2xx Success":      0,
			"4xx Client Error": 0,
			"5xx Server Error": 0,
		},
		AvgResponseTimes: []EndpointLatency{},
		RecentErrors:     []LogEntry{},
	}

	logs := s.recentLogs()
	responseTimeSum := make(map[string]time.Duration)
	for _, entry := range logs {
		if !entry.Timestamp.After(since) {
			continue
		}
		data.TotalRequests++
		data.Endpoints[entry.Path]++
		responseTimeSum[entry.Path] += entry.ResponseTime

		switch {
		case entry.StatusCode >= 500:
			data.StatusCodes["5xx Server Error"]++
		case entry.StatusCode >= 400:
			data.StatusCodes["4xx Client Error"]++
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			data.StatusCodes["2xx Success"]++
		}
	}

	for path, total := range responseTimeSum {
		data.AvgResponseTimes = append(data.AvgResponseTimes, EndpointLatency{
			Endpoint:     path,
			ResponseTime: total.Milliseconds() / int64(data.Endpoints[path]),
		})
	}
	sort.Slice(data.AvgResponseTimes, func(i, j int) bool {
		return data.AvgResponseTimes[i].Endpoint < data.AvgResponseTimes[j].Endpoint
	})

	// 直近の5xxを新しい順に最大10件
	for i := len(logs) - 1; i >= 0 && len(data.RecentErrors) < 10; i-- {
		if logs[i].StatusCode >= 500 && logs[i].Timestamp.After(since) {
			data.RecentErrors = append(data.RecentErrors, logs[i])
		}
	}
	return data
}
