package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"materials-forecast-api/pkg/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	comparisonDays        = 30
	comparisonTrainWindow = 90
	cyclicalStrengthMin   = 0.3
)

// comparisonAlgorithms バックテストで比較するアルゴリズム
var comparisonAlgorithms = []models.Algorithm{
	models.AlgorithmLSTM,
	models.AlgorithmARIMA,
	models.AlgorithmProphet,
	models.AlgorithmEnsemble,
}

// trendWindows 期間名と日数
var trendWindows = []struct {
	period string
	days   int
}{
	{"short", 30},
	{"medium", 90},
	{"long", 365},
}

// DiagnosticsService 履歴データから予測精度・季節性・トレンドを分析する
type DiagnosticsService struct {
	history *HistoricalStore
	runners *RunnerRegistry
}

// NewDiagnosticsService 新しい分析サービスを作成
func NewDiagnosticsService(history *HistoricalStore, runners *RunnerRegistry) *DiagnosticsService {
	if runners == nil {
		runners = NewRunnerRegistry()
	}
	return &DiagnosticsService{history: history, runners: runners}
}

func (s *DiagnosticsService) records(productID, plantID string) ([]models.HistoricalData, error) {
	records, ok := s.history.Get(productID, plantID)
	if !ok || len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", HistoryKey(productID, plantID), ErrNoHistoricalData)
	}
	return records, nil
}

// GetForecastComparison 直近30日について、前日までの履歴から1日先を予測して実績と比較する
func (s *DiagnosticsService) GetForecastComparison(ctx context.Context, productID, plantID string) ([]models.ForecastComparison, error) {
	records, err := s.records(productID, plantID)
	if err != nil {
		return nil, err
	}
	series := demandSeries(records)

	start := len(series) - comparisonDays
	if start < 1 {
		start = 1
	}
	cfg := models.ForecastingConfig{ID: "backtest", Horizon: 1}
	key := HistoryKey(productID, plantID)

	var results []models.ForecastComparison
	for day := start; day < len(series); day++ {
		trainFrom := day - comparisonTrainWindow
		if trainFrom < 0 {
			trainFrom = 0
		}
		training := series[trainFrom:day]
		actual := series[day]
		date := records[day].Date

		for _, algorithm := range comparisonAlgorithms {
			runner, err := s.runners.Runner(algorithm)
			if err != nil {
				return nil, err
			}
			cfg.Algorithm = algorithm
			res, err := runner.Run(ctx, training, cfg)
			if err != nil {
				return nil, fmt.Errorf("%s のバックテストに失敗: %w", algorithm, err)
			}
			predicted := res.PredictedDemand[0]
			diff := predicted - actual
			var pct float64
			if actual != 0 {
				pct = math.Abs(diff) / actual * 100
			}
			results = append(results, models.ForecastComparison{
				ID:              fmt.Sprintf("cmp_%s_%s_%s", key, date.Format("20060102"), algorithm),
				ProductID:       productID,
				PlantID:         plantID,
				Date:            date,
				Actual:          actual,
				Predicted:       predicted,
				Algorithm:       algorithm,
				Error:           diff,
				PercentageError: pct,
			})
		}
	}
	return results, nil
}

// GetSeasonalAnalysis 最新年の季節ごとの需要を集計する
func (s *DiagnosticsService) GetSeasonalAnalysis(productID, plantID string) ([]models.SeasonalAnalysis, error) {
	records, err := s.records(productID, plantID)
	if err != nil {
		return nil, err
	}
	year := records[len(records)-1].Date.Year()

	bySeason := make(map[models.Season][]float64)
	var yearly []float64
	for _, r := range records {
		if r.Date.Year() != year {
			continue
		}
		season := SeasonOf(r.Date.Month())
		bySeason[season] = append(bySeason[season], float64(r.Demand))
		yearly = append(yearly, float64(r.Demand))
	}
	overall := stat.Mean(yearly, nil)

	key := HistoryKey(productID, plantID)
	var results []models.SeasonalAnalysis
	for _, season := range []models.Season{models.SeasonSpring, models.SeasonSummer, models.SeasonFall, models.SeasonWinter} {
		demand, ok := bySeason[season]
		if !ok {
			continue
		}
		avg := stat.Mean(demand, nil)
		var factor float64
		if overall != 0 {
			factor = avg / overall
		}
		results = append(results, models.SeasonalAnalysis{
			ID:                fmt.Sprintf("seasonal_%s_%d_%s", key, year, season),
			ProductID:         productID,
			PlantID:           plantID,
			Season:            season,
			Year:              year,
			AverageDemand:     avg,
			PeakDemand:        floats.Max(demand),
			LowDemand:         floats.Min(demand),
			SeasonalityFactor: factor,
			Trend:             Trend(demand),
		})
	}
	return results, nil
}

// GetTrendAnalysis 短期（30日）・中期（90日）・長期（365日）のトレンドを分析する
func (s *DiagnosticsService) GetTrendAnalysis(productID, plantID string) ([]models.TrendAnalysis, error) {
	records, err := s.records(productID, plantID)
	if err != nil {
		return nil, err
	}

	key := HistoryKey(productID, plantID)
	results := make([]models.TrendAnalysis, 0, len(trendWindows))
	for _, w := range trendWindows {
		window := tail(records, w.days)
		series := demandSeries(window)
		slope := Trend(series)
		seasonality := DetectSeasonality(series)

		changePoints := make([]time.Time, 0)
		for _, i := range ChangePointIndices(series) {
			changePoints = append(changePoints, window[i].Date)
		}

		results = append(results, models.TrendAnalysis{
			ID:           fmt.Sprintf("trend_%s_%s", key, w.period),
			ProductID:    productID,
			PlantID:      plantID,
			Period:       w.period,
			StartDate:    window[0].Date,
			EndDate:      window[len(window)-1].Date,
			Direction:    trendLabel(slope, seasonality),
			Slope:        slope,
			Strength:     TrendStrength(slope),
			Confidence:   fitConfidence(series),
			ChangePoints: changePoints,
			Seasonality:  seasonality.Detected,
		})
	}
	return results, nil
}

// trendLabel upward / downward / stable、横ばいで季節性が強ければ cyclical
func trendLabel(slope float64, seasonality models.SeasonalityInfo) string {
	switch TrendDirectionOf(slope) {
	case models.TrendIncreasing:
		return "upward"
	case models.TrendDecreasing:
		return "downward"
	}
	if seasonality.Strength > cyclicalStrengthMin {
		return "cyclical"
	}
	return "stable"
}

// fitConfidence 線形回帰の決定係数を百分率にしたもの
func fitConfidence(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	xs := indexAxis(len(series))
	alpha, beta := stat.LinearRegression(xs, series, nil, false)
	r2 := stat.RSquared(xs, series, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return math.Max(0, math.Min(r2, 1)) * 100
}
