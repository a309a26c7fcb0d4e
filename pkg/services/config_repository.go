package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/go-playground/validator/v10"
)

// DefaultConfigID configId 省略時に使う設定
const DefaultConfigID = "construction_ensemble"

// ConfigStore 予測設定の永続化先
type ConfigStore interface {
	LoadAll() ([]models.ForecastingConfig, error)
	Save(cfg models.ForecastingConfig) error
	Close() error
}

// ConfigRepository 予測設定カタログ
//
// 起動時にテンプレートから作成され、更新で置き換えられる。削除はしない。
// store が設定されていれば更新を書き込み、起動時に保存済みの内容で上書きする。
type ConfigRepository struct {
	mu       sync.RWMutex
	configs  map[string]models.ForecastingConfig
	versions map[string]uint64
	store    ConfigStore
	validate *validator.Validate
}

// NewConfigRepository テンプレートを登録し、store の保存内容を重ねる
func NewConfigRepository(store ConfigStore, templates []models.ForecastingConfig) (*ConfigRepository, error) {
	r := &ConfigRepository{
		configs:  make(map[string]models.ForecastingConfig),
		versions: make(map[string]uint64),
		store:    store,
		validate: validator.New(),
	}
	for _, cfg := range templates {
		if err := r.Validate(cfg); err != nil {
			return nil, err
		}
		r.configs[cfg.ID] = cloneConfig(cfg)
	}

	if store != nil {
		saved, err := store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("保存済み設定の読み込みに失敗: %w", err)
		}
		for _, cfg := range saved {
			r.configs[cfg.ID] = cloneConfig(cfg)
		}
	}
	return r, nil
}

// Get IDで設定を取得
func (r *ConfigRepository) Get(id string) (models.ForecastingConfig, error) {
	cfg, _, err := r.GetVersioned(id)
	return cfg, err
}

// GetVersioned 設定と更新回数を同時に取得する
func (r *ConfigRepository) GetVersioned(id string) (models.ForecastingConfig, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return models.ForecastingConfig{}, 0, fmt.Errorf("%q: %w", id, ErrConfigNotFound)
	}
	return cloneConfig(cfg), r.versions[id], nil
}

// Version 設定の更新回数（Update のたびに増える）
func (r *ConfigRepository) Version(id string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[id]
}

// List 全設定をID順で返す
func (r *ConfigRepository) List() []models.ForecastingConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ForecastingConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cloneConfig(cfg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update 設定を検証して置き換える（存在しないIDなら追加）
func (r *ConfigRepository) Update(cfg models.ForecastingConfig) error {
	if err := r.Validate(cfg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store != nil {
		if err := r.store.Save(cfg); err != nil {
			return fmt.Errorf("設定の保存に失敗: %w", err)
		}
	}
	r.configs[cfg.ID] = cloneConfig(cfg)
	r.versions[cfg.ID]++
	return nil
}

// Validate 構造タグとアンサンブル重みを検証する
func (r *ConfigRepository) Validate(cfg models.ForecastingConfig) error {
	if err := r.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s: %s (%s): %w", cfg.ID, verrs[0].Field(), verrs[0].Tag(), ErrInvalidConfig)
		}
		return fmt.Errorf("%s: %v: %w", cfg.ID, err, ErrInvalidConfig)
	}
	if cfg.Algorithm == models.AlgorithmEnsemble {
		if _, err := EnsembleWeights(cfg.Parameters); err != nil {
			return fmt.Errorf("%s: %w", cfg.ID, err)
		}
	}
	return nil
}

// DefaultConfigs 建材業界向けの予測設定テンプレート
func DefaultConfigs(now time.Time) []models.ForecastingConfig {
	return []models.ForecastingConfig{
		{
			ID:        "aluminium_config",
			Name:      "Aluminium Industry LSTM",
			Algorithm: models.AlgorithmLSTM,
			Parameters: map[string]interface{}{
				"layers":              []interface{}{64, 32, 16},
				"epochs":              150,
				"batchSize":           32,
				"lookback":            60,
				"constructionFactors": true,
				"commodityPrices":     true,
			},
			Horizon:              90,
			ConfidenceLevel:      92,
			SeasonalityDetection: true,
			AnomalyDetection:     true,
			ExternalFactors:      true,
			AutoRetrain:          true,
			RetrainInterval:      7,
			LastRetrain:          now,
			Accuracy:             91.5,
			IsActive:             true,
		},
		{
			ID:        "hardware_config",
			Name:      "Hardware Supply Chain ARIMA",
			Algorithm: models.AlgorithmARIMA,
			Parameters: map[string]interface{}{
				"p":                  2,
				"d":                  1,
				"q":                  2,
				"seasonal":           true,
				"seasonalPeriod":     12,
				"constructionDemand": true,
			},
			Horizon:              60,
			ConfidenceLevel:      88,
			SeasonalityDetection: true,
			AnomalyDetection:     true,
			ExternalFactors:      true,
			AutoRetrain:          true,
			RetrainInterval:      14,
			LastRetrain:          now,
			Accuracy:             87.3,
			IsActive:             true,
		},
		{
			ID:        "construction_ensemble",
			Name:      "Construction Materials Ensemble",
			Algorithm: models.AlgorithmEnsemble,
			Parameters: map[string]interface{}{
				"models":            []interface{}{"lstm", "arima", "prophet"},
				"weights":           []float64{0.45, 0.35, 0.20},
				"voting":            "weighted",
				"constructionIndex": true,
				"weatherImpact":     true,
				"permitData":        true,
			},
			Horizon:              120,
			ConfidenceLevel:      95,
			SeasonalityDetection: true,
			AnomalyDetection:     true,
			ExternalFactors:      true,
			AutoRetrain:          true,
			RetrainInterval:      7,
			LastRetrain:          now,
			Accuracy:             94.2,
			IsActive:             true,
		},
		{
			ID:        "seasonal_prophet",
			Name:      "Seasonal Prophet",
			Algorithm: models.AlgorithmProphet,
			Parameters: map[string]interface{}{
				"trendDamping": prophetTrendDamping,
				"weekly":       true,
			},
			Horizon:              90,
			ConfidenceLevel:      90,
			SeasonalityDetection: true,
			AnomalyDetection:     true,
			ExternalFactors:      true,
			AutoRetrain:          false,
			RetrainInterval:      7,
			LastRetrain:          now,
			Accuracy:             88.6,
			IsActive:             true,
		},
		{
			ID:        "smoothing_baseline",
			Name:      "Exponential Smoothing Baseline",
			Algorithm: models.AlgorithmExponentialSmoothing,
			Parameters: map[string]interface{}{
				"alpha": defaultSmoothing,
			},
			Horizon:              30,
			ConfidenceLevel:      85,
			SeasonalityDetection: false,
			AnomalyDetection:     true,
			ExternalFactors:      false,
			AutoRetrain:          false,
			RetrainInterval:      14,
			LastRetrain:          now,
			Accuracy:             84.1,
			IsActive:             true,
		},
	}
}

// cloneConfig parameters マップを複製して呼び出し側との共有を避ける
func cloneConfig(cfg models.ForecastingConfig) models.ForecastingConfig {
	if cfg.Parameters != nil {
		params := make(map[string]interface{}, len(cfg.Parameters))
		for k, v := range cfg.Parameters {
			params[k] = v
		}
		cfg.Parameters = params
	}
	return cfg
}
