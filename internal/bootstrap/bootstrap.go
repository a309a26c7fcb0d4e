// Package bootstrap サーバーとCLIで共通のサービス組み立て
package bootstrap

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	config "materials-forecast-api/configs"
	"materials-forecast-api/pkg/services"

	"github.com/sirupsen/logrus"
)

// App 組み立て済みのサービス一式
type App struct {
	Logger      *logrus.Logger
	Configs     *services.ConfigRepository
	History     *services.HistoricalStore
	Runners     *services.RunnerRegistry
	Forecasts   *services.DemandForecastService
	Diagnostics *services.DiagnosticsService
	Monitoring  *services.MonitoringService

	store services.ConfigStore
}

// NewLogger LOG_LEVEL に従ったロガーを作成（不正な値は info）
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// New 設定から各サービスを組み立てる
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}
	now := time.Now

	templates := services.DefaultConfigs(now())
	if cfg.ForecastConfigFile != "" {
		loaded, err := config.LoadForecastTemplates(cfg.ForecastConfigFile)
		if err != nil {
			return nil, err
		}
		templates = loaded
		logger.WithField("file", cfg.ForecastConfigFile).Info("予測設定ファイルを読み込みました")
	}

	var store services.ConfigStore
	if cfg.ConfigDBPath != "" {
		boltStore, err := services.NewBoltConfigStore(cfg.ConfigDBPath)
		if err != nil {
			return nil, err
		}
		store = boltStore
	}

	repo, err := services.NewConfigRepository(store, templates)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	history, err := loadHistory(cfg, logger, now)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	runners := services.NewRunnerRegistry()
	return &App{
		Logger:  logger,
		Configs: repo,
		History: history,
		Runners: runners,
		Forecasts: services.NewDemandForecastService(repo, history,
			services.WithLogger(logger),
			services.WithCacheTTL(cfg.ForecastCacheTTL),
			services.WithRunnerRegistry(runners),
		),
		Diagnostics: services.NewDiagnosticsService(history, runners),
		Monitoring:  services.NewMonitoringService(logger),
		store:       store,
	}, nil
}

// loadHistory HISTORY_FILE があれば取り込み、なければ全製品×全工場を生成する
func loadHistory(cfg *config.Config, logger *logrus.Logger, now func() time.Time) (*services.HistoricalStore, error) {
	history := services.NewHistoricalStore()

	if cfg.HistoryFile != "" {
		f, err := os.Open(cfg.HistoryFile)
		if err != nil {
			return nil, fmt.Errorf("履歴ファイルを開けません: %w", err)
		}
		defer f.Close()
		n, err := history.ImportWorkbook(f, cfg.HistoryFile)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{"file": cfg.HistoryFile, "series": n}).Info("履歴データを取り込みました")
		return history, nil
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = rand.Uint64()
	}
	generator := services.NewSeededGenerator(seed, now)
	if err := history.SeedFromGenerator(generator, services.DefaultProducts(), services.DefaultPlants()); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"seed": seed, "series": len(history.Keys())}).Info("履歴データを生成しました")
	return history, nil
}

// Close 設定DBを閉じる
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func closeStore(store services.ConfigStore) {
	if store != nil {
		store.Close()
	}
}
