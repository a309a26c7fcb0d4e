package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL 予測キャッシュの有効期間
	DefaultCacheTTL = 24 * time.Hour

	modelWindowDays          = 90
	externalFactorWindowDays = 30

	// staleConfigRetries 生成中に設定が更新された場合の再実行回数
	staleConfigRetries = 3
)

// DemandForecastService 需要予測サービス
//
// 設定カタログと履歴ストアを受け取り、予測を生成してキャッシュする。
// キャッシュ（productId-plantId-configId）を書き換えるのはこのサービスだけ。
type DemandForecastService struct {
	configs  *ConfigRepository
	history  *HistoricalStore
	runners  *RunnerRegistry
	logger   *logrus.Logger
	now      func() time.Time
	cacheTTL time.Duration

	mu     sync.RWMutex
	cache  map[string]*models.Forecast
	flight singleflight.Group
}

// DemandForecastOption サービスのオプション
type DemandForecastOption func(*DemandForecastService)

// WithClock 現在時刻の取得関数を差し替える
func WithClock(now func() time.Time) DemandForecastOption {
	return func(s *DemandForecastService) { s.now = now }
}

// WithCacheTTL キャッシュの有効期間を変更する
func WithCacheTTL(ttl time.Duration) DemandForecastOption {
	return func(s *DemandForecastService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLogger ロガーを指定する
func WithLogger(logger *logrus.Logger) DemandForecastOption {
	return func(s *DemandForecastService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRunnerRegistry 予測モデルのレジストリを差し替える
func WithRunnerRegistry(registry *RunnerRegistry) DemandForecastOption {
	return func(s *DemandForecastService) {
		if registry != nil {
			s.runners = registry
		}
	}
}

// NewDemandForecastService 新しい需要予測サービスを作成
func NewDemandForecastService(configs *ConfigRepository, history *HistoricalStore, opts ...DemandForecastOption) *DemandForecastService {
	s := &DemandForecastService{
		configs:  configs,
		history:  history,
		runners:  NewRunnerRegistry(),
		logger:   logrus.StandardLogger(),
		now:      time.Now,
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]*models.Forecast),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForecastKey キャッシュのキー（productId-plantId-configId）
func ForecastKey(productID, plantID, configID string) string {
	return productID + "-" + plantID + "-" + configID
}

// GetForecast キャッシュが24時間以内なら返し、そうでなければ再生成する
//
// 返す予測はキャッシュと共有しているので、呼び出し側で変更しないこと。
func (s *DemandForecastService) GetForecast(ctx context.Context, productID, plantID, configID string) (*models.Forecast, error) {
	if configID == "" {
		configID = DefaultConfigID
	}
	key := ForecastKey(productID, plantID, configID)

	if forecast := s.freshForecast(key); forecast != nil {
		forecastCacheRequests.WithLabelValues("hit").Inc()
		return forecast, nil
	}
	forecastCacheRequests.WithLabelValues("miss").Inc()

	return s.coalesce(ctx, key, func(runCtx context.Context) (*models.Forecast, error) {
		// 待っている間に他のリクエストが生成を終えていればそれを使う
		if forecast := s.freshForecast(key); forecast != nil {
			return forecast, nil
		}
		return s.generate(runCtx, productID, plantID, configID)
	})
}

// GenerateForecast 予測を生成してキャッシュを置き換える
func (s *DemandForecastService) GenerateForecast(ctx context.Context, productID, plantID, configID string) (*models.Forecast, error) {
	if configID == "" {
		configID = DefaultConfigID
	}
	// GetForecast の生成に合流するとキャッシュ済みの予測が返り得るのでキーを分ける
	key := "generate:" + ForecastKey(productID, plantID, configID)
	return s.coalesce(ctx, key, func(runCtx context.Context) (*models.Forecast, error) {
		return s.generate(runCtx, productID, plantID, configID)
	})
}

// coalesce 同じキーの生成を1つにまとめる
//
// 生成自体は呼び出し元のキャンセルから切り離し、待機だけを ctx で打ち切る。
func (s *DemandForecastService) coalesce(ctx context.Context, key string, fn func(context.Context) (*models.Forecast, error)) (*models.Forecast, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		return fn(runCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Forecast), nil
	}
}

func (s *DemandForecastService) freshForecast(key string) *models.Forecast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	forecast, ok := s.cache[key]
	if !ok {
		return nil
	}
	if s.now().Sub(forecast.LastUpdated) >= s.cacheTTL {
		return nil
	}
	return forecast
}

// generate 予測を生成してキャッシュする
//
// 生成中に設定が更新された場合は古い設定の結果をキャッシュせず、新しい設定で作り直す。
func (s *DemandForecastService) generate(ctx context.Context, productID, plantID, configID string) (*models.Forecast, error) {
	log := s.logger.WithFields(logrus.Fields{
		"productId": productID,
		"plantId":   plantID,
		"configId":  configID,
	})
	key := ForecastKey(productID, plantID, configID)

	for attempt := 0; ; attempt++ {
		cfg, version, err := s.configs.GetVersioned(configID)
		if err != nil {
			forecastGenerations.WithLabelValues("unknown", "error").Inc()
			log.WithError(err).Warn("予測設定が見つかりません")
			return nil, err
		}

		forecast, err := s.build(ctx, log, productID, plantID, cfg)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		current := s.configs.Version(configID) == version
		if current {
			s.cache[key] = forecast
		}
		s.mu.Unlock()

		if current {
			return forecast, nil
		}
		if attempt >= staleConfigRetries {
			log.Warn("設定の更新が続いたため予測をキャッシュせずに返します")
			return forecast, nil
		}
		log.Debug("生成中に設定が更新されたため再生成します")
	}
}

// build 1つの設定で予測を組み立てる（キャッシュには触らない）
func (s *DemandForecastService) build(ctx context.Context, log *logrus.Entry, productID, plantID string, cfg models.ForecastingConfig) (*models.Forecast, error) {
	start := time.Now()
	algorithm := string(cfg.Algorithm)

	history, ok := s.history.Get(productID, plantID)
	if !ok || len(history) == 0 {
		forecastGenerations.WithLabelValues(algorithm, "error").Inc()
		err := fmt.Errorf("%s: %w", HistoryKey(productID, plantID), ErrNoHistoricalData)
		log.WithError(err).Warn("履歴データがありません")
		return nil, err
	}

	runner, err := s.runners.Runner(cfg.Algorithm)
	if err != nil {
		forecastGenerations.WithLabelValues(algorithm, "error").Inc()
		log.WithError(err).Warn("未対応のアルゴリズムです")
		return nil, err
	}

	series := demandSeries(tail(history, modelWindowDays))
	result, err := runner.Run(ctx, series, cfg)
	if err != nil {
		forecastGenerations.WithLabelValues(algorithm, "error").Inc()
		log.WithError(err).Error("予測モデルの実行に失敗")
		return nil, fmt.Errorf("予測モデル %s の実行に失敗: %w", algorithm, err)
	}

	now := s.now()
	trend := DetectTrend(series, now)
	forecast := &models.Forecast{
		ID:                 "forecast_" + uuid.New().String(),
		ProductID:          productID,
		PlantID:            plantID,
		ConfigID:           cfg.ID,
		Period:             "daily",
		StartDate:          now,
		EndDate:            now.AddDate(0, 0, cfg.Horizon),
		PredictedDemand:    result.PredictedDemand,
		ConfidenceInterval: result.ConfidenceInterval,
		Accuracy:           cfg.Accuracy,
		Algorithm:          cfg.Algorithm,
		LastUpdated:        now,
		Trend:              &trend,
		ModelMetrics:       result.ModelMetrics,
	}
	if cfg.SeasonalityDetection {
		seasonality := DetectSeasonality(series)
		forecast.Seasonality = &seasonality
	}
	if cfg.AnomalyDetection {
		anomalies := DetectAnomalies(series, now)
		forecast.Anomalies = &anomalies
	}
	if cfg.ExternalFactors {
		factors := SummarizeExternalFactors(tail(history, externalFactorWindowDays))
		forecast.ExternalFactors = &factors
	}
	forecast.Recommendations = GenerateRecommendations(forecast, history, now)

	elapsed := time.Since(start)
	forecastGenerations.WithLabelValues(algorithm, "success").Inc()
	forecastGenerationDuration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	log.WithFields(logrus.Fields{
		"algorithm":       algorithm,
		"horizon":         cfg.Horizon,
		"recommendations": len(forecast.Recommendations),
		"elapsed":         elapsed.String(),
	}).Info("需要予測を生成しました")

	return forecast, nil
}

// SummarizeExternalFactors 気温・祝日・イベント・GDP の平均を要約値にする
func SummarizeExternalFactors(records []models.HistoricalData) models.ExternalFactors {
	if len(records) == 0 {
		return models.ExternalFactors{}
	}
	n := float64(len(records))
	var temperature, gdp, holidayDays, eventDays float64
	for _, r := range records {
		if r.Weather != nil {
			temperature += r.Weather.Temperature
		}
		if r.EconomicIndicators != nil {
			gdp += r.EconomicIndicators.GDP
		}
		if len(r.Holidays) > 0 {
			holidayDays++
		}
		if len(r.Events) > 0 {
			eventDays++
		}
	}
	return models.ExternalFactors{
		Weather:  temperature / n / 100,
		Holidays: holidayDays / n,
		Events:   eventDays / n,
		Economic: gdp / n / 100,
	}
}

// Invalidate キャッシュから1件削除する
func (s *DemandForecastService) Invalidate(productID, plantID, configID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ForecastKey(productID, plantID, configID)
	_, ok := s.cache[key]
	delete(s.cache, key)
	return ok
}

// InvalidateAll キャッシュを空にして削除件数を返す
func (s *DemandForecastService) InvalidateAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.cache)
	s.cache = make(map[string]*models.Forecast)
	return n
}

// ListForecasts キャッシュ済みの予測をキー順で返す
func (s *DemandForecastService) ListForecasts() []*models.Forecast {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.cache))
	for key := range s.cache {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*models.Forecast, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.cache[key])
	}
	return out
}

// GetForecastingConfigs 設定カタログを返す
func (s *DemandForecastService) GetForecastingConfigs() []models.ForecastingConfig {
	return s.configs.List()
}

// UpdateForecastingConfig 設定を更新し、その設定で作られたキャッシュを破棄する
func (s *DemandForecastService) UpdateForecastingConfig(cfg models.ForecastingConfig) error {
	if _, err := s.runners.Runner(cfg.Algorithm); err != nil {
		return err
	}
	if err := s.configs.Update(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, forecast := range s.cache {
		if forecast.ConfigID == cfg.ID {
			delete(s.cache, key)
		}
	}
	s.logger.WithField("configId", cfg.ID).Info("予測設定を更新しました")
	return nil
}

// GetHistoricalData 履歴データのコピーを返す（未登録なら空）
func (s *DemandForecastService) GetHistoricalData(productID, plantID string) []models.HistoricalData {
	return s.history.Snapshot(productID, plantID)
}

// ImportHistoricalData ワークブックを履歴ストアに取り込み、登録したキー数を返す
func (s *DemandForecastService) ImportHistoricalData(r io.Reader, fileName string) (int, error) {
	n, err := s.history.ImportWorkbook(r, fileName)
	if err != nil {
		s.logger.WithError(err).WithField("file", fileName).Warn("履歴データの取り込みに失敗")
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"file": fileName, "series": n}).Info("履歴データを取り込みました")
	return n, nil
}
