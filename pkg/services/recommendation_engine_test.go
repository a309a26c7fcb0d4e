package services

import (
	"strings"
	"testing"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatForecast(productID string, value float64, days int) *models.Forecast {
	predicted := make([]float64, days)
	for i := range predicted {
		predicted[i] = value
	}
	return &models.Forecast{
		ProductID:       productID,
		PredictedDemand: predicted,
		Accuracy:        91.5,
		Trend:           &models.TrendInfo{Direction: models.TrendStable},
	}
}

func latest(demand, stock int) []models.HistoricalData {
	return []models.HistoricalData{
		{Demand: 1, Stock: 1},
		{Demand: demand, Stock: stock},
	}
}

func titles(recs []models.ForecastRecommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

func TestRecommendationLowStock(t *testing.T) {
	june := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	recs := GenerateRecommendations(flatForecast("Steel-Beams-001", 1000, 30), latest(1000, 100), june)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "Urgent Material Procurement", rec.Title)
	assert.Equal(t, "procurement", rec.Type)
	assert.Equal(t, "high", rec.Impact)
	assert.Equal(t, 91.5, rec.Confidence)
	assert.True(t, strings.HasPrefix(rec.ID, "rec_"))
	require.NotNil(t, rec.CostBenefit)
	assert.Equal(t, 50000.0, rec.CostBenefit.Cost)
	assert.Equal(t, 180000.0, rec.CostBenefit.Benefit)
	assert.Equal(t, 260.0, rec.CostBenefit.ROI)
}

func TestRecommendationConstructionSeason(t *testing.T) {
	february := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	recs := GenerateRecommendations(flatForecast("Concrete-Mix-002", 1000, 30), latest(500, 1000), february)

	require.Len(t, recs, 1)
	assert.Equal(t, "Prepare for Construction Season", recs[0].Title)
	assert.Equal(t, "Construction season approaching - predicted 100% demand increase", recs[0].Description)
	assert.Equal(t, 233.0, recs[0].CostBenefit.ROI)

	// 4月はシーズン準備の対象外
	april := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, GenerateRecommendations(flatForecast("Concrete-Mix-002", 1000, 30), latest(500, 1000), april))
}

func TestRecommendationConstructionSeasonFromZeroDemand(t *testing.T) {
	march := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	recs := GenerateRecommendations(flatForecast("Concrete-Mix-002", 1000, 30), latest(0, 1000), march)

	require.Len(t, recs, 1)
	assert.Equal(t, "Construction season approaching - predicted demand of 1000 units", recs[0].Description)
}

func TestRecommendationExcessStock(t *testing.T) {
	june := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	recs := GenerateRecommendations(flatForecast("Hardware-Bolts-002", 1000, 30), latest(1000, 3000), june)

	assert.Equal(t, []string{"Optimize Seasonal Inventory"}, titles(recs))
	assert.Equal(t, "medium", recs[0].Impact)
}

func TestRecommendationAluminiumHedging(t *testing.T) {
	june := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	forecast := flatForecast("Aluminium-Sheets-001", 1000, 30)
	forecast.Trend.Direction = models.TrendIncreasing

	recs := GenerateRecommendations(forecast, latest(1000, 1000), june)
	assert.Equal(t, []string{"Aluminium Price Hedging"}, titles(recs))

	// アルミ以外では発火しない
	forecast.ProductID = "Steel-Beams-001"
	assert.Empty(t, GenerateRecommendations(forecast, latest(1000, 1000), june))
}

func TestRecommendationsCombined(t *testing.T) {
	march := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	forecast := flatForecast("Aluminium-Profiles-002", 1000, 30)
	forecast.Trend.Direction = models.TrendIncreasing

	recs := GenerateRecommendations(forecast, latest(500, 100), march)
	assert.Equal(t, []string{
		"Prepare for Construction Season",
		"Urgent Material Procurement",
		"Aluminium Price Hedging",
	}, titles(recs))

	seen := make(map[string]bool)
	for _, r := range recs {
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
}

func TestRecommendationsEmptyInputs(t *testing.T) {
	recs := GenerateRecommendations(nil, nil, testNow)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	// 予測0・在庫0では何も発火しない
	recs = GenerateRecommendations(flatForecast("Steel-Beams-001", 0, 10), nil, testNow)
	assert.Empty(t, recs)
}

func TestMeanOfEmptyAndValues(t *testing.T) {
	assert.Equal(t, 0.0, meanOf(nil))
	assert.InDelta(t, 150.0, meanOf([]float64{100, 200, 150}), 1e-9)
}
