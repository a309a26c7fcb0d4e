package models

import "time"

// Algorithm 予測アルゴリズムの識別子
type Algorithm string

const (
	AlgorithmLSTM                 Algorithm = "lstm"
	AlgorithmARIMA                Algorithm = "arima"
	AlgorithmProphet              Algorithm = "prophet"
	AlgorithmEnsemble             Algorithm = "ensemble"
	AlgorithmExponentialSmoothing Algorithm = "exponential_smoothing"
)

// Season 季節区分
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

// TrendDirection 予測トレンドの方向
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// ForecastingConfig 予測設定（アルゴリズムとパラメータ）
type ForecastingConfig struct {
	ID                   string                 `json:"id" yaml:"id" validate:"required"`
	Name                 string                 `json:"name" yaml:"name"`
	Algorithm            Algorithm              `json:"algorithm" yaml:"algorithm" validate:"required"`
	Parameters           map[string]interface{} `json:"parameters" yaml:"parameters"`
	Horizon              int                    `json:"horizon" yaml:"horizon" validate:"gt=0,lte=730"`
	ConfidenceLevel      float64                `json:"confidenceLevel" yaml:"confidenceLevel" validate:"gte=0,lte=100"`
	SeasonalityDetection bool                   `json:"seasonalityDetection" yaml:"seasonalityDetection"`
	AnomalyDetection     bool                   `json:"anomalyDetection" yaml:"anomalyDetection"`
	ExternalFactors      bool                   `json:"externalFactors" yaml:"externalFactors"`
	AutoRetrain          bool                   `json:"autoRetrain" yaml:"autoRetrain"`
	RetrainInterval      int                    `json:"retrainInterval" yaml:"retrainInterval" validate:"gte=0"`
	LastRetrain          time.Time              `json:"lastRetrain" yaml:"lastRetrain"`
	Accuracy             float64                `json:"accuracy" yaml:"accuracy" validate:"gte=0,lte=100"`
	IsActive             bool                   `json:"isActive" yaml:"isActive"`
}

// WeatherConditions 日次の気象条件
type WeatherConditions struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
}

// EconomicIndicators 経済指標（建設業界の指数を含む）
type EconomicIndicators struct {
	GDP               float64 `json:"gdp"`
	Inflation         float64 `json:"inflation"`
	Unemployment      float64 `json:"unemployment"`
	ConstructionIndex float64 `json:"constructionIndex,omitempty"`
	HousingStarts     float64 `json:"housingStarts,omitempty"`
	BuildingPermits   float64 `json:"buildingPermits,omitempty"`
}

// HistoricalData 製品×工場ごとの日次実績
type HistoricalData struct {
	ID                 string              `json:"id"`
	ProductID          string              `json:"productId"`
	PlantID            string              `json:"plantId"`
	Date               time.Time           `json:"date"`
	Demand             int                 `json:"demand"`
	Supply             int                 `json:"supply"`
	Stock              int                 `json:"stock"`
	Price              float64             `json:"price"`
	Weather            *WeatherConditions  `json:"weather,omitempty"`
	Events             []string            `json:"events,omitempty"`
	Holidays           []string            `json:"holidays,omitempty"`
	EconomicIndicators *EconomicIndicators `json:"economicIndicators,omitempty"`
}

// ConfidenceInterval 予測値の信頼区間（下限・上限）
type ConfidenceInterval struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// ModelMetrics モデル精度の指標
type ModelMetrics struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// SeasonalityInfo 季節性の検出結果
type SeasonalityInfo struct {
	Detected bool    `json:"detected"`
	Period   int     `json:"period"`
	Strength float64 `json:"strength"`
	Type     string  `json:"type"`
}

// TrendInfo トレンドの検出結果
type TrendInfo struct {
	Direction    TrendDirection `json:"direction"`
	Slope        float64        `json:"slope"`
	Strength     float64        `json:"strength"`
	ChangePoints []time.Time    `json:"changePoints"`
}

// AnomalyInfo 異常値の検出結果
type AnomalyInfo struct {
	Detected bool        `json:"detected"`
	Points   []time.Time `json:"points"`
	Severity []float64   `json:"severity"`
}

// ExternalFactors 外部要因の要約値（直近30日）
type ExternalFactors struct {
	Weather  float64 `json:"weather"`
	Holidays float64 `json:"holidays"`
	Events   float64 `json:"events"`
	Economic float64 `json:"economic"`
}

// CostBenefit 推奨アクションの費用対効果
type CostBenefit struct {
	Cost    float64 `json:"cost"`
	Benefit float64 `json:"benefit"`
	ROI     float64 `json:"roi"`
}

// ForecastRecommendation 予測結果から導出された推奨アクション
type ForecastRecommendation struct {
	ID              string       `json:"id"`
	Type            string       `json:"type"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Impact          string       `json:"impact"`
	Confidence      float64      `json:"confidence"`
	SuggestedAction string       `json:"suggestedAction"`
	ExpectedOutcome string       `json:"expectedOutcome"`
	CostBenefit     *CostBenefit `json:"costBenefit,omitempty"`
}

// Forecast 製品×工場×設定ごとの需要予測結果
type Forecast struct {
	ID                 string                   `json:"id"`
	ProductID          string                   `json:"productId"`
	PlantID            string                   `json:"plantId"`
	ConfigID           string                   `json:"configId"`
	Period             string                   `json:"period"`
	StartDate          time.Time                `json:"startDate"`
	EndDate            time.Time                `json:"endDate"`
	PredictedDemand    []float64                `json:"predictedDemand"`
	ConfidenceInterval ConfidenceInterval       `json:"confidenceInterval"`
	Accuracy           float64                  `json:"accuracy"`
	Algorithm          Algorithm                `json:"algorithm"`
	LastUpdated        time.Time                `json:"lastUpdated"`
	Seasonality        *SeasonalityInfo         `json:"seasonality,omitempty"`
	Trend              *TrendInfo               `json:"trend,omitempty"`
	Anomalies          *AnomalyInfo             `json:"anomalies,omitempty"`
	ModelMetrics       ModelMetrics             `json:"modelMetrics"`
	ExternalFactors    *ExternalFactors         `json:"externalFactors,omitempty"`
	Recommendations    []ForecastRecommendation `json:"recommendations"`
}

// ForecastRequest ネットワーク越しの予測リクエスト
type ForecastRequest struct {
	ProductID string `json:"productId" binding:"required"`
	PlantID   string `json:"plantId" binding:"required"`
	ConfigID  string `json:"configId,omitempty"`
}

// ForecastComparison アルゴリズム別のバックテスト結果（1日分）
type ForecastComparison struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"productId"`
	PlantID         string    `json:"plantId"`
	Date            time.Time `json:"date"`
	Actual          float64   `json:"actual"`
	Predicted       float64   `json:"predicted"`
	Algorithm       Algorithm `json:"algorithm"`
	Error           float64   `json:"error"`
	PercentageError float64   `json:"percentageError"`
}

// SeasonalAnalysis 季節別の需要分析
type SeasonalAnalysis struct {
	ID                string  `json:"id"`
	ProductID         string  `json:"productId"`
	PlantID           string  `json:"plantId"`
	Season            Season  `json:"season"`
	Year              int     `json:"year"`
	AverageDemand     float64 `json:"averageDemand"`
	PeakDemand        float64 `json:"peakDemand"`
	LowDemand         float64 `json:"lowDemand"`
	SeasonalityFactor float64 `json:"seasonalityFactor"`
	Trend             float64 `json:"trend"`
}

// TrendAnalysis 期間別のトレンド分析
type TrendAnalysis struct {
	ID           string      `json:"id"`
	ProductID    string      `json:"productId"`
	PlantID      string      `json:"plantId"`
	Period       string      `json:"period"`
	StartDate    time.Time   `json:"startDate"`
	EndDate      time.Time   `json:"endDate"`
	Direction    string      `json:"direction"`
	Slope        float64     `json:"slope"`
	Strength     float64     `json:"strength"`
	Confidence   float64     `json:"confidence"`
	ChangePoints []time.Time `json:"changePoints"`
	Seasonality  bool        `json:"seasonality"`
}
