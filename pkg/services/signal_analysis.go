package services

import (
	"math"
	"time"

	"materials-forecast-api/pkg/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	weeklyPeriod           = 7
	changePointThreshold   = 0.2
	anomalyZScoreThreshold = 2.5
	trendStableBand        = 0.01
	seasonalAmplitudeMin   = 0.05
)

// Trend 最小二乗法の傾きを系列平均で割った値（1期あたりの相対変化率）
//
// 平坦な系列、要素数1以下、平均0の場合は0を返す。
func Trend(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	mean := stat.Mean(series, nil)
	if mean == 0 {
		return 0
	}
	_, slope := stat.LinearRegression(indexAxis(len(series)), series, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0
	}
	return slope / mean
}

// TrendDirectionOf 傾きから方向を判定（±0.01以内は stable）
func TrendDirectionOf(slope float64) models.TrendDirection {
	switch {
	case slope > trendStableBand:
		return models.TrendIncreasing
	case slope < -trendStableBand:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// TrendStrength 傾きの絶対値×100 を 1 で打ち切った値
func TrendStrength(slope float64) float64 {
	return math.Min(math.Abs(slope)*100, 1)
}

// SeasonalPattern 曜日（7日周期）ごとの平均を全体平均1に正規化した指数
func SeasonalPattern(series []float64) []float64 {
	pattern := make([]float64, weeklyPeriod)
	counts := make([]int, weeklyPeriod)
	for i, v := range series {
		pattern[i%weeklyPeriod] += v
		counts[i%weeklyPeriod]++
	}

	var filled []float64
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
			filled = append(filled, pattern[i])
		}
	}
	if len(filled) == 0 {
		return flatPattern()
	}
	// 観測のない曜日は観測済み曜日の平均で埋める
	fill := stat.Mean(filled, nil)
	for i := range pattern {
		if counts[i] == 0 {
			pattern[i] = fill
		}
	}

	avg := stat.Mean(pattern, nil)
	if avg == 0 {
		return flatPattern()
	}
	floats.Scale(1/avg, pattern)
	return pattern
}

func flatPattern() []float64 {
	pattern := make([]float64, weeklyPeriod)
	for i := range pattern {
		pattern[i] = 1
	}
	return pattern
}

// DetectSeasonality 週次指数の振幅から季節性を判定
func DetectSeasonality(series []float64) models.SeasonalityInfo {
	pattern := SeasonalPattern(series)
	amplitude := floats.Max(pattern) - floats.Min(pattern)
	return models.SeasonalityInfo{
		Detected: len(series) >= 2*weeklyPeriod && amplitude > seasonalAmplitudeMin,
		Period:   weeklyPeriod,
		Strength: math.Min(amplitude, 1),
		Type:     "multiplicative",
	}
}

// ChangePointIndices 前日比の変化率が20%を超えたインデックス
func ChangePointIndices(series []float64) []int {
	var indices []int
	for i := 1; i < len(series); i++ {
		prev := series[i-1]
		if prev == 0 {
			continue
		}
		if math.Abs(series[i]-prev)/math.Abs(prev) > changePointThreshold {
			indices = append(indices, i)
		}
	}
	return indices
}

// ChangePoints 変化点を now から遡った日付に変換する
func ChangePoints(series []float64, now time.Time) []time.Time {
	indices := ChangePointIndices(series)
	points := make([]time.Time, 0, len(indices))
	for _, i := range indices {
		points = append(points, now.AddDate(0, 0, -(len(series)-i)))
	}
	return points
}

// AnomalyIndices 母集団Zスコアの絶対値が2.5を超える点とその深刻度
func AnomalyIndices(series []float64) ([]int, []float64) {
	if len(series) == 0 {
		return nil, nil
	}
	mean, std := stat.PopMeanStdDev(series, nil)
	if std == 0 || math.IsNaN(std) {
		return nil, nil
	}

	var indices []int
	var severity []float64
	for i, v := range series {
		z := math.Abs((v - mean) / std)
		if z > anomalyZScoreThreshold {
			indices = append(indices, i)
			severity = append(severity, z)
		}
	}
	return indices, severity
}

// DetectAnomalies 異常点を now から遡った日付として返す
func DetectAnomalies(series []float64, now time.Time) models.AnomalyInfo {
	indices, severity := AnomalyIndices(series)
	points := make([]time.Time, 0, len(indices))
	for _, i := range indices {
		points = append(points, now.AddDate(0, 0, -(len(series)-i)))
	}
	if severity == nil {
		severity = []float64{}
	}
	return models.AnomalyInfo{
		Detected: len(indices) > 0,
		Points:   points,
		Severity: severity,
	}
}

// DetectTrend トレンドの方向・傾き・強さ・変化点をまとめて返す
func DetectTrend(series []float64, now time.Time) models.TrendInfo {
	slope := Trend(series)
	return models.TrendInfo{
		Direction:    TrendDirectionOf(slope),
		Slope:        slope,
		Strength:     TrendStrength(slope),
		ChangePoints: ChangePoints(series, now),
	}
}

func indexAxis(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
