package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"materials-forecast-api/pkg/models"

	"golang.org/x/sync/errgroup"
)

// ModelResult 予測モデルの出力（点予測・信頼区間・適合指標）
type ModelResult struct {
	PredictedDemand    []float64
	ConfidenceInterval models.ConfidenceInterval
	ModelMetrics       models.ModelMetrics
}

// ModelRunner 予測アルゴリズム1種類分の実装
type ModelRunner interface {
	Algorithm() models.Algorithm
	Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error)
}

// modelDefaults 信頼区間の幅と適合指標の既定値
//
// 指標は残差から計算したものではなく固定値。parameters の bandWidth / metrics で上書きできる。
type modelDefaults struct {
	bandWidth float64
	metrics   models.ModelMetrics
}

var runnerDefaults = map[models.Algorithm]modelDefaults{
	models.AlgorithmLSTM:                 {bandWidth: 0.15, metrics: models.ModelMetrics{MAPE: 5.2, RMSE: 12.3, MAE: 8.7, R2: 0.89}},
	models.AlgorithmARIMA:                {bandWidth: 0.20, metrics: models.ModelMetrics{MAPE: 7.8, RMSE: 15.6, MAE: 11.2, R2: 0.82}},
	models.AlgorithmProphet:              {bandWidth: 0.13, metrics: models.ModelMetrics{MAPE: 6.3, RMSE: 13.1, MAE: 9.4, R2: 0.86}},
	models.AlgorithmExponentialSmoothing: {bandWidth: 0.18, metrics: models.ModelMetrics{MAPE: 8.9, RMSE: 16.7, MAE: 12.8, R2: 0.79}},
	models.AlgorithmEnsemble:             {bandWidth: 0.12, metrics: models.ModelMetrics{MAPE: 4.1, RMSE: 9.8, MAE: 6.5, R2: 0.92}},
}

// DefaultEnsembleWeights LSTM / ARIMA / Prophet の既定の重み
var DefaultEnsembleWeights = []float64{0.45, 0.35, 0.20}

const (
	weightSumTolerance  = 0.01
	defaultSmoothing    = 0.3
	prophetTrendDamping = 0.8
	lstmTrendScale      = 30.0
)

// projection i期先（0始まり）の素の予測値を返す
type projection func(i int) float64

// RunnerRegistry アルゴリズム名から実装を引く
type RunnerRegistry struct {
	runners map[models.Algorithm]ModelRunner
}

// NewRunnerRegistry 5種類の予測モデルを登録したレジストリを作成
func NewRunnerRegistry() *RunnerRegistry {
	lstm := &lstmRunner{}
	arima := &arimaRunner{}
	prophet := &prophetRunner{}

	r := &RunnerRegistry{runners: make(map[models.Algorithm]ModelRunner)}
	for _, runner := range []ModelRunner{
		lstm,
		arima,
		prophet,
		&exponentialSmoothingRunner{},
		&ensembleRunner{members: []ModelRunner{lstm, arima, prophet}},
	} {
		r.runners[runner.Algorithm()] = runner
	}
	return r
}

// Runner アルゴリズムに対応する実装を返す
func (r *RunnerRegistry) Runner(algorithm models.Algorithm) (ModelRunner, error) {
	runner, ok := r.runners[algorithm]
	if !ok {
		return nil, fmt.Errorf("%q: %w", algorithm, ErrUnsupportedAlgorithm)
	}
	return runner, nil
}

// Algorithms 登録済みアルゴリズムの一覧
func (r *RunnerRegistry) Algorithms() []models.Algorithm {
	algorithms := make([]models.Algorithm, 0, len(r.runners))
	for algorithm := range r.runners {
		algorithms = append(algorithms, algorithm)
	}
	sort.Slice(algorithms, func(i, j int) bool { return algorithms[i] < algorithms[j] })
	return algorithms
}

// lstmRunner 直近値をトレンド（ステップ/30で拡大）と週次指数で外挿する
type lstmRunner struct{}

func (r *lstmRunner) Algorithm() models.Algorithm { return models.AlgorithmLSTM }

func (r *lstmRunner) Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error) {
	if err := checkRunInput(ctx, series, cfg); err != nil {
		return nil, err
	}
	last := series[len(series)-1]
	trend := Trend(series)
	pattern := SeasonalPattern(series)
	return finalize(r.Algorithm(), cfg, func(i int) float64 {
		base := last * (1 + trend*float64(i+1)/lstmTrendScale)
		return base * pattern[i%len(pattern)]
	})
}

// arimaRunner 直近値×(1+トレンド)×週次指数
type arimaRunner struct{}

func (r *arimaRunner) Algorithm() models.Algorithm { return models.AlgorithmARIMA }

func (r *arimaRunner) Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error) {
	if err := checkRunInput(ctx, series, cfg); err != nil {
		return nil, err
	}
	last := series[len(series)-1]
	trend := Trend(series)
	pattern := SeasonalPattern(series)
	return finalize(r.Algorithm(), cfg, func(i int) float64 {
		return last * (1 + trend) * pattern[i%weeklyPeriod]
	})
}

// prophetRunner ARIMAと同じ形でトレンドを80%に減衰
type prophetRunner struct{}

func (r *prophetRunner) Algorithm() models.Algorithm { return models.AlgorithmProphet }

func (r *prophetRunner) Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error) {
	if err := checkRunInput(ctx, series, cfg); err != nil {
		return nil, err
	}
	last := series[len(series)-1]
	trend := Trend(series) * prophetTrendDamping
	pattern := SeasonalPattern(series)
	return finalize(r.Algorithm(), cfg, func(i int) float64 {
		return last * (1 + trend) * pattern[i%weeklyPeriod]
	})
}

// exponentialSmoothingRunner 単純指数平滑（alpha 既定 0.3、直近値を初期値とする）
type exponentialSmoothingRunner struct{}

func (r *exponentialSmoothingRunner) Algorithm() models.Algorithm {
	return models.AlgorithmExponentialSmoothing
}

func (r *exponentialSmoothingRunner) Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error) {
	if err := checkRunInput(ctx, series, cfg); err != nil {
		return nil, err
	}
	alpha := floatParam(cfg.Parameters, "alpha", defaultSmoothing)
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha=%v: %w", alpha, ErrInvalidConfig)
	}

	smoothed := series[len(series)-1]
	steps := make([]float64, cfg.Horizon)
	for i := range steps {
		steps[i] = smoothed
		smoothed = alpha*steps[i] + (1-alpha)*smoothed
	}
	return finalize(r.Algorithm(), cfg, func(i int) float64 { return steps[i] })
}

// ensembleRunner LSTM・ARIMA・Prophet を並行実行し、重み付き平均で合成する
type ensembleRunner struct {
	members []ModelRunner
}

func (r *ensembleRunner) Algorithm() models.Algorithm { return models.AlgorithmEnsemble }

func (r *ensembleRunner) Run(ctx context.Context, series []float64, cfg models.ForecastingConfig) (*ModelResult, error) {
	if err := checkRunInput(ctx, series, cfg); err != nil {
		return nil, err
	}
	weights, err := EnsembleWeights(cfg.Parameters)
	if err != nil {
		return nil, err
	}
	if len(weights) != len(r.members) {
		return nil, fmt.Errorf("重みは%d個必要です（%d個指定）: %w", len(r.members), len(weights), ErrInvalidWeights)
	}

	outputs := make([][]float64, len(r.members))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range r.members {
		g.Go(func() error {
			res, err := member.Run(gctx, series, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", member.Algorithm(), err)
			}
			outputs[i] = res.PredictedDemand
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return finalize(r.Algorithm(), cfg, func(i int) float64 {
		var combined float64
		for k, out := range outputs {
			combined += weights[k] * out[i]
		}
		return combined
	})
}

// EnsembleWeights parameters.weights を検証して返す（未指定なら既定値）
func EnsembleWeights(params map[string]interface{}) ([]float64, error) {
	raw, ok := params["weights"]
	if !ok || raw == nil {
		return append([]float64(nil), DefaultEnsembleWeights...), nil
	}
	weights, ok := toFloatSlice(raw)
	if !ok {
		return nil, fmt.Errorf("weights の形式が不正です: %w", ErrInvalidWeights)
	}
	if len(weights) != len(DefaultEnsembleWeights) {
		return nil, fmt.Errorf("重みは%d個必要です（%d個指定）: %w", len(DefaultEnsembleWeights), len(weights), ErrInvalidWeights)
	}
	var sum float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("負の重み %v: %w", w, ErrInvalidWeights)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return nil, fmt.Errorf("重みの合計が1ではありません（%.4f）: %w", sum, ErrInvalidWeights)
	}
	return weights, nil
}

func checkRunInput(ctx context.Context, series []float64, cfg models.ForecastingConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(series) == 0 {
		return ErrEmptySeries
	}
	if cfg.Horizon <= 0 {
		return fmt.Errorf("horizon=%d: %w", cfg.Horizon, ErrInvalidConfig)
	}
	return nil
}

// finalize 予測値を0以上の整数に丸め、丸め後の値を中心に信頼区間を作る
//
// 下限は切り捨て、上限は切り上げにして lower <= predicted <= upper を保証する。
func finalize(algorithm models.Algorithm, cfg models.ForecastingConfig, project projection) (*ModelResult, error) {
	defaults := runnerDefaults[algorithm]
	band := floatParam(cfg.Parameters, "bandWidth", defaults.bandWidth)
	if band < 0 || band >= 1 {
		return nil, fmt.Errorf("bandWidth=%v: %w", band, ErrInvalidConfig)
	}

	predicted := make([]float64, cfg.Horizon)
	lower := make([]float64, cfg.Horizon)
	upper := make([]float64, cfg.Horizon)
	for i := 0; i < cfg.Horizon; i++ {
		value := project(i)
		if math.IsNaN(value) || value < 0 {
			value = 0
		}
		value = math.Round(value)
		predicted[i] = value
		lower[i] = math.Floor(value * (1 - band))
		upper[i] = math.Ceil(value * (1 + band))
	}

	return &ModelResult{
		PredictedDemand:    predicted,
		ConfidenceInterval: models.ConfidenceInterval{Lower: lower, Upper: upper},
		ModelMetrics:       metricsParam(cfg.Parameters, defaults.metrics),
	}, nil
}

func floatParam(params map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := toFloat(params[key]); ok {
		return v
	}
	return fallback
}

func metricsParam(params map[string]interface{}, fallback models.ModelMetrics) models.ModelMetrics {
	raw, ok := params["metrics"].(map[string]interface{})
	if !ok {
		return fallback
	}
	out := fallback
	if v, ok := toFloat(raw["mape"]); ok {
		out.MAPE = v
	}
	if v, ok := toFloat(raw["rmse"]); ok {
		out.RMSE = v
	}
	if v, ok := toFloat(raw["mae"]); ok {
		out.MAE = v
	}
	if v, ok := toFloat(raw["r2"]); ok {
		out.R2 = v
	}
	return out
}

// toFloat JSON/YAML/Go リテラル由来の数値を float64 に揃える
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toFloatSlice(v interface{}) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return append([]float64(nil), s...), true
	case []interface{}:
		out := make([]float64, 0, len(s))
		for _, item := range s {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}
