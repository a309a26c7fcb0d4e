package services

import (
	"context"
	"testing"

	"materials-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiagnostics(t *testing.T) *DiagnosticsService {
	t.Helper()
	return NewDiagnosticsService(seededStore(t, []string{"Aluminium-Sheets-001"}, []string{"plant001"}), nil)
}

func TestForecastComparison(t *testing.T) {
	diag := newTestDiagnostics(t)

	results, err := diag.GetForecastComparison(context.Background(), "Aluminium-Sheets-001", "plant001")
	require.NoError(t, err)
	require.Len(t, results, comparisonDays*len(comparisonAlgorithms))

	perAlgorithm := make(map[models.Algorithm]int)
	for _, r := range results {
		perAlgorithm[r.Algorithm]++
		assert.GreaterOrEqual(t, r.Predicted, 0.0)
		assert.GreaterOrEqual(t, r.PercentageError, 0.0)
		assert.Equal(t, r.Predicted-r.Actual, r.Error)
	}
	for _, algorithm := range comparisonAlgorithms {
		assert.Equal(t, comparisonDays, perAlgorithm[algorithm])
	}
	assert.Equal(t, results[0].Date, results[3].Date)
	assert.True(t, results[4].Date.After(results[0].Date))
}

func TestForecastComparisonShortHistory(t *testing.T) {
	store := NewHistoricalStore()
	require.NoError(t, store.Load("P", "X", []models.HistoricalData{
		{Date: testNow.AddDate(0, 0, -2), Demand: 10},
		{Date: testNow.AddDate(0, 0, -1), Demand: 12},
	}))
	diag := NewDiagnosticsService(store, nil)

	results, err := diag.GetForecastComparison(context.Background(), "P", "X")
	require.NoError(t, err)
	assert.Len(t, results, len(comparisonAlgorithms))
}

func TestSeasonalAnalysis(t *testing.T) {
	diag := newTestDiagnostics(t)

	results, err := diag.GetSeasonalAnalysis("Aluminium-Sheets-001", "plant001")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.Equal(t, 2025, r.Year)
		assert.LessOrEqual(t, r.LowDemand, r.AverageDemand)
		assert.LessOrEqual(t, r.AverageDemand, r.PeakDemand)
		assert.Greater(t, r.SeasonalityFactor, 0.0)
	}
	// 2025年のデータは6月13日まで
	seasons := make([]models.Season, 0, len(results))
	for _, r := range results {
		seasons = append(seasons, r.Season)
	}
	assert.Equal(t, []models.Season{models.SeasonSpring, models.SeasonSummer, models.SeasonWinter}, seasons)
}

func TestTrendAnalysis(t *testing.T) {
	diag := newTestDiagnostics(t)

	results, err := diag.GetTrendAnalysis("Aluminium-Sheets-001", "plant001")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "short", results[0].Period)
	assert.Equal(t, "medium", results[1].Period)
	assert.Equal(t, "long", results[2].Period)
	for _, r := range results {
		assert.Contains(t, []string{"upward", "downward", "stable", "cyclical"}, r.Direction)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 100.0)
		assert.True(t, r.StartDate.Before(r.EndDate))
		assert.NotNil(t, r.ChangePoints)
	}
	assert.Equal(t, 29, int(results[0].EndDate.Sub(results[0].StartDate).Hours()/24))
}

func TestTrendLabel(t *testing.T) {
	assert.Equal(t, "upward", trendLabel(0.05, models.SeasonalityInfo{}))
	assert.Equal(t, "downward", trendLabel(-0.05, models.SeasonalityInfo{Strength: 0.9}))
	assert.Equal(t, "cyclical", trendLabel(0, models.SeasonalityInfo{Strength: 0.4}))
	assert.Equal(t, "stable", trendLabel(0, models.SeasonalityInfo{Strength: 0.2}))
}

func TestFitConfidence(t *testing.T) {
	assert.InDelta(t, 100.0, fitConfidence([]float64{1, 2, 3, 4, 5}), 1e-9)
	assert.Equal(t, 0.0, fitConfidence([]float64{3, 3, 3}))
	assert.Equal(t, 0.0, fitConfidence([]float64{3}))
}

func TestDiagnosticsNoHistory(t *testing.T) {
	diag := NewDiagnosticsService(NewHistoricalStore(), nil)

	_, err := diag.GetForecastComparison(context.Background(), "P", "X")
	assert.ErrorIs(t, err, ErrNoHistoricalData)
	_, err = diag.GetSeasonalAnalysis("P", "X")
	assert.ErrorIs(t, err, ErrNoHistoricalData)
	_, err = diag.GetTrendAnalysis("P", "X")
	assert.ErrorIs(t, err, ErrNoHistoricalData)
}
