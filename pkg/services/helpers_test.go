package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// seededStore 固定シード・固定時刻で生成した履歴を持つストア
func seededStore(t *testing.T, products, plants []string) *HistoricalStore {
	t.Helper()
	store := NewHistoricalStore()
	generator := NewSeededGenerator(42, func() time.Time { return testNow })
	require.NoError(t, store.SeedFromGenerator(generator, products, plants))
	return store
}

type forecastFixture struct {
	service *DemandForecastService
	configs *ConfigRepository
	store   *HistoricalStore
	clock   *fakeClock
}

func newForecastFixture(t *testing.T, extraConfigs ...models.ForecastingConfig) *forecastFixture {
	t.Helper()
	clock := newFakeClock(testNow)
	store := seededStore(t,
		[]string{"Steel-Beams-001", "Aluminium-Sheets-001", "Hardware-Screws-001"},
		[]string{"plant001", "plant002"})

	repo, err := NewConfigRepository(nil, append(DefaultConfigs(testNow), extraConfigs...))
	require.NoError(t, err)

	service := NewDemandForecastService(repo, store,
		WithClock(clock.Now),
		WithLogger(quietLogger()),
	)
	return &forecastFixture{service: service, configs: repo, store: store, clock: clock}
}

// weeklySeries 週次パターンを持つ緩やかな増加系列
func weeklySeries(n int) []float64 {
	pattern := []float64{0.8, 1.0, 1.1, 1.2, 1.1, 0.9, 0.9}
	series := make([]float64, n)
	for i := range series {
		series[i] = (400 + float64(i)*2) * pattern[i%len(pattern)]
	}
	return series
}

// blockingRunner 最初の1回だけ release が閉じられるまで止まるランナー
type blockingRunner struct {
	ModelRunner
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.started)
		<-r.release
	}
	return r.ModelRunner.Run(ctx, series, cfg)
}

// withBlockingRunner 指定アルゴリズムの最初の実行が止まるサービスを fixture のストアと設定で作る
func (fx *forecastFixture) withBlockingRunner(algorithm models.Algorithm) (*blockingRunner, *DemandForecastService) {
	registry := NewRunnerRegistry()
	blocker := &blockingRunner{
		ModelRunner: registry.runners[algorithm],
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	registry.runners[algorithm] = blocker

	service := NewDemandForecastService(fx.configs, fx.store,
		WithClock(fx.clock.Now),
		WithLogger(quietLogger()),
		WithRunnerRegistry(registry),
	)
	return blocker, service
}
