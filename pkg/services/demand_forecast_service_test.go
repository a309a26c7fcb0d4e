package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetForecastConstructionEnsemble(t *testing.T) {
	fx := newForecastFixture(t)

	forecast, err := fx.service.GetForecast(context.Background(), "Steel-Beams-001", "plant001", "construction_ensemble")
	require.NoError(t, err)

	assert.Equal(t, "Steel-Beams-001", forecast.ProductID)
	assert.Equal(t, "plant001", forecast.PlantID)
	assert.Equal(t, "construction_ensemble", forecast.ConfigID)
	assert.Equal(t, models.AlgorithmEnsemble, forecast.Algorithm)
	assert.Equal(t, 94.2, forecast.Accuracy)
	assert.Equal(t, "daily", forecast.Period)
	assert.Equal(t, testNow, forecast.StartDate)
	assert.Equal(t, testNow.AddDate(0, 0, 120), forecast.EndDate)

	require.Len(t, forecast.PredictedDemand, 120)
	require.Len(t, forecast.ConfidenceInterval.Lower, 120)
	require.Len(t, forecast.ConfidenceInterval.Upper, 120)
	for i, p := range forecast.PredictedDemand {
		assert.LessOrEqual(t, forecast.ConfidenceInterval.Lower[i], p)
		assert.LessOrEqual(t, p, forecast.ConfidenceInterval.Upper[i])
	}

	require.NotNil(t, forecast.Trend)
	require.NotNil(t, forecast.Seasonality)
	require.NotNil(t, forecast.Anomalies)
	require.NotNil(t, forecast.ExternalFactors)
	assert.NotNil(t, forecast.Recommendations)
	for _, rec := range forecast.Recommendations {
		assert.Equal(t, forecast.Accuracy, rec.Confidence)
	}
}

func TestGenerateForecastAluminiumSheetsEnsemble(t *testing.T) {
	fx := newForecastFixture(t)

	forecast, err := fx.service.GenerateForecast(context.Background(), "Aluminium-Sheets-001", "plant001", "construction_ensemble")
	require.NoError(t, err)

	assert.Equal(t, models.AlgorithmEnsemble, forecast.Algorithm)
	assert.Len(t, forecast.PredictedDemand, 120)
	assert.Equal(t, "Aluminium-Sheets-001", forecast.ProductID)
	assert.Equal(t, "plant001", forecast.PlantID)

	cached, err := fx.service.GetForecast(context.Background(), "Aluminium-Sheets-001", "plant001", "construction_ensemble")
	require.NoError(t, err)
	assert.Equal(t, forecast.ID, cached.ID)
}

func TestGetForecastDefaultsConfig(t *testing.T) {
	fx := newForecastFixture(t)

	forecast, err := fx.service.GetForecast(context.Background(), "Steel-Beams-001", "plant002", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigID, forecast.ConfigID)
}

func TestGetForecastErrors(t *testing.T) {
	fx := newForecastFixture(t)

	_, err := fx.service.GetForecast(context.Background(), "Steel-Beams-001", "plant001", "does_not_exist")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	_, err = fx.service.GetForecast(context.Background(), "Unknown-Product", "plant001", "hardware_config")
	assert.ErrorIs(t, err, ErrNoHistoricalData)

	assert.Empty(t, fx.service.ListForecasts())
}

func TestGetForecastIsCached(t *testing.T) {
	fx := newForecastFixture(t)
	ctx := context.Background()

	first, err := fx.service.GetForecast(ctx, "Hardware-Screws-001", "plant001", "hardware_config")
	require.NoError(t, err)

	fx.clock.Advance(23 * time.Hour)
	second, err := fx.service.GetForecast(ctx, "Hardware-Screws-001", "plant001", "hardware_config")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	fx.clock.Advance(2 * time.Hour)
	third, err := fx.service.GetForecast(ctx, "Hardware-Screws-001", "plant001", "hardware_config")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, fx.clock.Now(), third.LastUpdated)
}

func TestGenerateForecastReplacesCache(t *testing.T) {
	fx := newForecastFixture(t)
	ctx := context.Background()

	cached, err := fx.service.GetForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
	require.NoError(t, err)

	regenerated, err := fx.service.GenerateForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
	require.NoError(t, err)
	assert.NotEqual(t, cached.ID, regenerated.ID)
	assert.Equal(t, cached.PredictedDemand, regenerated.PredictedDemand, "runners are deterministic")

	got, err := fx.service.GetForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
	require.NoError(t, err)
	assert.Equal(t, regenerated.ID, got.ID)
	assert.Len(t, fx.service.ListForecasts(), 1)
}

func TestConcurrentGetForecastCoalesces(t *testing.T) {
	fx := newForecastFixture(t)

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			forecast, err := fx.service.GetForecast(context.Background(), "Steel-Beams-001", "plant001", "construction_ensemble")
			if assert.NoError(t, err) {
				ids[i] = forecast.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, fx.service.ListForecasts(), 1)
}

func TestFailedGenerationKeepsCache(t *testing.T) {
	fx := newForecastFixture(t, models.ForecastingConfig{
		ID:        "transformer_config",
		Name:      "Transformer",
		Algorithm: "transformer",
		Horizon:   30,
		Accuracy:  90,
	})
	ctx := context.Background()

	good, err := fx.service.GetForecast(ctx, "Steel-Beams-001", "plant001", "hardware_config")
	require.NoError(t, err)

	_, err = fx.service.GetForecast(ctx, "Steel-Beams-001", "plant001", "transformer_config")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	forecasts := fx.service.ListForecasts()
	require.Len(t, forecasts, 1)
	assert.Equal(t, good.ID, forecasts[0].ID)
}

func TestDecorationToggles(t *testing.T) {
	fx := newForecastFixture(t)

	forecast, err := fx.service.GetForecast(context.Background(), "Steel-Beams-001", "plant001", "smoothing_baseline")
	require.NoError(t, err)

	assert.Len(t, forecast.PredictedDemand, 30)
	assert.NotNil(t, forecast.Trend)
	assert.NotNil(t, forecast.Anomalies)
	assert.Nil(t, forecast.Seasonality)
	assert.Nil(t, forecast.ExternalFactors)
}

func TestUpdateForecastingConfigInvalidatesCache(t *testing.T) {
	fx := newForecastFixture(t)
	ctx := context.Background()

	before, err := fx.service.GetForecast(ctx, "Hardware-Screws-001", "plant002", "hardware_config")
	require.NoError(t, err)
	require.Len(t, before.PredictedDemand, 60)

	cfg, err := fx.configs.Get("hardware_config")
	require.NoError(t, err)
	cfg.Horizon = 14
	require.NoError(t, fx.service.UpdateForecastingConfig(cfg))

	after, err := fx.service.GetForecast(ctx, "Hardware-Screws-001", "plant002", "hardware_config")
	require.NoError(t, err)
	assert.Len(t, after.PredictedDemand, 14)
	assert.NotEqual(t, before.ID, after.ID)
}

func TestUpdateForecastingConfigValidation(t *testing.T) {
	fx := newForecastFixture(t)

	cfg, err := fx.configs.Get("construction_ensemble")
	require.NoError(t, err)

	bad := cfg
	bad.Algorithm = "transformer"
	assert.ErrorIs(t, fx.service.UpdateForecastingConfig(bad), ErrUnsupportedAlgorithm)

	bad = cfg
	bad.Parameters = map[string]interface{}{"weights": []float64{0.6, 0.6, 0.1}}
	assert.ErrorIs(t, fx.service.UpdateForecastingConfig(bad), ErrInvalidWeights)

	bad = cfg
	bad.Horizon = 0
	assert.ErrorIs(t, fx.service.UpdateForecastingConfig(bad), ErrInvalidConfig)

	unchanged, err := fx.configs.Get("construction_ensemble")
	require.NoError(t, err)
	assert.Equal(t, 120, unchanged.Horizon)
}

func TestInvalidate(t *testing.T) {
	fx := newForecastFixture(t)
	ctx := context.Background()

	_, err := fx.service.GetForecast(ctx, "Steel-Beams-001", "plant001", "hardware_config")
	require.NoError(t, err)
	_, err = fx.service.GetForecast(ctx, "Steel-Beams-001", "plant002", "hardware_config")
	require.NoError(t, err)

	assert.True(t, fx.service.Invalidate("Steel-Beams-001", "plant001", "hardware_config"))
	assert.False(t, fx.service.Invalidate("Steel-Beams-001", "plant001", "hardware_config"))
	assert.Len(t, fx.service.ListForecasts(), 1)
	assert.Equal(t, 1, fx.service.InvalidateAll())
	assert.Empty(t, fx.service.ListForecasts())
}

func TestGetHistoricalData(t *testing.T) {
	fx := newForecastFixture(t)

	records := fx.service.GetHistoricalData("Steel-Beams-001", "plant001")
	assert.Len(t, records, HistoryDays)
	assert.Empty(t, fx.service.GetHistoricalData("Unknown", "plant001"))
	assert.Len(t, fx.service.GetForecastingConfigs(), 5)
}

func TestSummarizeExternalFactors(t *testing.T) {
	records := []models.HistoricalData{
		{Weather: &models.WeatherConditions{Temperature: 20}, EconomicIndicators: &models.EconomicIndicators{GDP: 3}, Holidays: []string{"New Year"}},
		{Weather: &models.WeatherConditions{Temperature: 30}, EconomicIndicators: &models.EconomicIndicators{GDP: 5}, Events: []string{"Expo"}},
		{Weather: &models.WeatherConditions{Temperature: 10}, EconomicIndicators: &models.EconomicIndicators{GDP: 4}},
		{},
	}

	factors := SummarizeExternalFactors(records)
	assert.InDelta(t, 0.15, factors.Weather, 1e-9)
	assert.InDelta(t, 0.03, factors.Economic, 1e-9)
	assert.InDelta(t, 0.25, factors.Holidays, 1e-9)
	assert.InDelta(t, 0.25, factors.Events, 1e-9)

	assert.Equal(t, models.ExternalFactors{}, SummarizeExternalFactors(nil))
}

type forecastOutcome struct {
	forecast *models.Forecast
	err      error
}

func TestConfigUpdateDuringGenerationIsNotCached(t *testing.T) {
	fx := newForecastFixture(t)
	blocker, service := fx.withBlockingRunner(models.AlgorithmLSTM)
	ctx := context.Background()

	done := make(chan forecastOutcome, 1)
	go func() {
		forecast, err := service.GetForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
		done <- forecastOutcome{forecast, err}
	}()
	<-blocker.started

	cfg, err := fx.configs.Get("aluminium_config")
	require.NoError(t, err)
	cfg.Horizon = 14
	require.NoError(t, service.UpdateForecastingConfig(cfg))
	close(blocker.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Len(t, res.forecast.PredictedDemand, 14)

	cached, err := service.GetForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
	require.NoError(t, err)
	assert.Len(t, cached.PredictedDemand, 14)
	assert.Equal(t, res.forecast.ID, cached.ID)
}

func TestGenerateForecastDoesNotJoinPendingGet(t *testing.T) {
	fx := newForecastFixture(t)
	blocker, service := fx.withBlockingRunner(models.AlgorithmLSTM)
	ctx := context.Background()

	done := make(chan forecastOutcome, 1)
	go func() {
		forecast, err := service.GetForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
		done <- forecastOutcome{forecast, err}
	}()
	<-blocker.started

	regenerated, err := service.GenerateForecast(ctx, "Aluminium-Sheets-001", "plant001", "aluminium_config")
	require.NoError(t, err)
	close(blocker.release)

	res := <-done
	require.NoError(t, res.err)
	assert.NotEqual(t, res.forecast.ID, regenerated.ID)
	assert.Len(t, regenerated.PredictedDemand, 90)
}
