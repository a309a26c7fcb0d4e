package services

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"materials-forecast-api/pkg/models"
)

// HistoryDays 生成する履歴の日数（2年分）
const HistoryDays = 730

// HistoricalGenerator 建材需要の模擬履歴データを生成する
//
// 季節性・建設シーズン・経済成長・気象の各係数を掛け合わせて日次需要を作る。
// 乱数源は外から渡すので、テストではシードを固定して同じ系列を再現できる。
type HistoricalGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewHistoricalGenerator 乱数源と時計を指定して生成器を作成
func NewHistoricalGenerator(rng *rand.Rand, now func() time.Time) *HistoricalGenerator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if now == nil {
		now = time.Now
	}
	return &HistoricalGenerator{rng: rng, now: now}
}

// NewSeededGenerator 固定シードの生成器を作成
func NewSeededGenerator(seed uint64, now func() time.Time) *HistoricalGenerator {
	return NewHistoricalGenerator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now)
}

// Generate 製品×工場の730日分の日次履歴を日付昇順で返す
func (g *HistoricalGenerator) Generate(productID, plantID string) []models.HistoricalData {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	start := time.Date(now.Year()-2, now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	key := HistoryKey(productID, plantID)
	category := CategoryOf(productID)
	base := BaseDemand(productID)

	records := make([]models.HistoricalData, 0, HistoryDays)
	for i := 0; i < HistoryDays; i++ {
		date := start.AddDate(0, 0, i)
		weather := g.sampleWeather(date)

		seasonalFactor := seasonalityFactor(date, category)
		constructionFactor := constructionDemandFactor(date, weather)
		economicFactor := g.economicFactor(date)
		weatherFactor := weatherDemandFactor(weather)

		demand := int(math.Round(base * seasonalFactor * constructionFactor * economicFactor * weatherFactor))
		if demand < 0 {
			demand = 0
		}

		records = append(records, models.HistoricalData{
			ID:                 fmt.Sprintf("hist_%s_%d", key, i),
			ProductID:          productID,
			PlantID:            plantID,
			Date:               date,
			Demand:             demand,
			Supply:             int(math.Round(float64(demand) * g.uniform(0.85, 1.15))),
			Stock:              int(math.Round(float64(demand) * g.uniform(1.2, 2.0))),
			Price:              g.price(productID, category, date),
			Weather:            &weather,
			Events:             industryEvents(date),
			Holidays:           constructionHolidays(date),
			EconomicIndicators: g.economicIndicators(date),
		})
	}
	return records
}

func (g *HistoricalGenerator) uniform(low, high float64) float64 {
	return low + g.rng.Float64()*(high-low)
}

// monthWave 月(0-11)に対する年周期の正弦波
func monthWave(date time.Time, phase float64) float64 {
	month := float64(date.Month() - 1)
	return math.Sin(month/12*2*math.Pi + phase)
}

func (g *HistoricalGenerator) sampleWeather(date time.Time) models.WeatherConditions {
	temperature := 15 + 20*monthWave(date, 0) + g.uniform(-5, 5)
	precipitation := math.Max(0, 5+3*monthWave(date, math.Pi)+g.uniform(-2.5, 2.5))
	return models.WeatherConditions{
		Temperature:   temperature,
		Humidity:      g.uniform(40, 80),
		Precipitation: precipitation,
	}
}

// seasonalityFactor カテゴリの季節係数 × 建設シーズン補正 × 月次変動
func seasonalityFactor(date time.Time, category ProductCategory) float64 {
	profile, ok := categoryProfiles[category]
	if !ok {
		return 1.0
	}
	seasonal, ok := profile.seasonalFactors[SeasonOf(date.Month())]
	if !ok {
		seasonal = 1.0
	}

	boost := 0.8
	if date.Month() >= profile.constructionStart && date.Month() <= profile.constructionEnd {
		boost = 1.2
	}
	return seasonal * boost * (1 + 0.1*monthWave(date, 0))
}

// constructionDemandFactor 週末減・年周期・天候による施工可否
func constructionDemandFactor(date time.Time, weather models.WeatherConditions) float64 {
	weekend := 1.0
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		weekend = 0.7
	}
	return weekend * (1 + 0.3*monthWave(date, 0)) * weatherDemandFactor(weather)
}

func (g *HistoricalGenerator) economicFactor(date time.Time) float64 {
	return 1 + 0.02*float64(date.Year()-2020) + g.uniform(-0.05, 0.05)
}

// weatherDemandFactor 極端な気温や降水で需要が落ちる
func weatherDemandFactor(weather models.WeatherConditions) float64 {
	switch {
	case weather.Temperature < 0 || weather.Temperature > 35:
		return 0.6
	case weather.Precipitation > 10:
		return 0.7
	case weather.Precipitation > 5:
		return 0.85
	default:
		return 1.0
	}
}

func (g *HistoricalGenerator) price(productID string, category ProductCategory, date time.Time) float64 {
	volatility := defaultVolatility
	if profile, ok := categoryProfiles[category]; ok {
		volatility = profile.priceVolatility
	}
	commodity := 1 + g.uniform(-0.5, 0.5)*volatility
	seasonal := 1 + 0.05*monthWave(date, 0)
	inflation := 1 + 0.03*float64(date.Year()-2020)
	return math.Round(basePrice(productID)*commodity*seasonal*inflation*100) / 100
}

func (g *HistoricalGenerator) economicIndicators(date time.Time) *models.EconomicIndicators {
	years := float64(date.Year() - 2020)
	nextMonth := math.Sin(float64(date.Month()) / 12 * 2 * math.Pi)
	return &models.EconomicIndicators{
		GDP:               g.uniform(2, 5),
		Inflation:         g.uniform(2, 6),
		Unemployment:      g.uniform(3.5, 7.5),
		ConstructionIndex: math.Round(100 * (1 + 0.2*monthWave(date, 0)) * (1 + 0.02*years)),
		HousingStarts:     math.Round(1500 * (1 + 0.4*monthWave(date, 0)) * (1 + 0.03*years)),
		BuildingPermits:   math.Round(1800 * (1 + 0.3*nextMonth) * (1 + 0.025*years)),
	}
}

// industryEvents 業界イベントカレンダー
func industryEvents(date time.Time) []string {
	var events []string
	day := date.Day()
	switch date.Month() {
	case time.March:
		if day >= 15 && day <= 20 {
			events = append(events, "International Building Materials Expo")
		}
	case time.June:
		if day >= 10 && day <= 15 {
			events = append(events, "Construction Industry Conference")
		}
	case time.July:
		if day >= 1 && day <= 7 {
			events = append(events, "Summer Construction Sale")
		}
	case time.October:
		if day >= 20 && day <= 25 {
			events = append(events, "Hardware Manufacturers Show")
		}
	case time.December:
		if day >= 20 && day <= 30 {
			events = append(events, "Year-End Inventory Clearance")
		}
	}
	return events
}

// constructionHolidays 祝日カレンダー（固定日付）
func constructionHolidays(date time.Time) []string {
	holidays := map[time.Month]map[int]string{
		time.January:   {1: "New Year"},
		time.July:      {4: "Independence Day"},
		time.September: {5: "Labor Day"},
		time.November:  {24: "Thanksgiving"},
		time.December:  {25: "Christmas"},
	}
	if name, ok := holidays[date.Month()][date.Day()]; ok {
		return []string{name}
	}
	return nil
}
