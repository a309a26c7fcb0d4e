package services

import (
	"strings"
	"time"

	"materials-forecast-api/pkg/models"
)

// ProductCategory 建材の製品カテゴリ
type ProductCategory string

const (
	CategoryAluminium    ProductCategory = "aluminium"
	CategoryHardware     ProductCategory = "hardware"
	CategoryConstruction ProductCategory = "construction"
)

const (
	defaultBaseDemand = 500.0
	defaultBasePrice  = 5.00
	defaultVolatility = 0.1
)

// categoryProfile カテゴリごとの季節係数・建設シーズン・価格変動率
type categoryProfile struct {
	products          []string
	seasonalFactors   map[models.Season]float64
	constructionStart time.Month
	constructionEnd   time.Month
	priceVolatility   float64
}

var categoryProfiles = map[ProductCategory]categoryProfile{
	CategoryAluminium: {
		products: []string{"Aluminium-Sheets-001", "Aluminium-Profiles-002", "Aluminium-Coils-003"},
		seasonalFactors: map[models.Season]float64{
			models.SeasonSpring: 1.3, models.SeasonSummer: 1.1, models.SeasonFall: 0.9, models.SeasonWinter: 0.7,
		},
		constructionStart: time.March,
		constructionEnd:   time.October,
		priceVolatility:   0.15,
	},
	CategoryHardware: {
		products: []string{"Hardware-Screws-001", "Hardware-Bolts-002", "Hardware-Hinges-003"},
		seasonalFactors: map[models.Season]float64{
			models.SeasonSpring: 1.2, models.SeasonSummer: 1.0, models.SeasonFall: 0.8, models.SeasonWinter: 0.6,
		},
		constructionStart: time.February,
		constructionEnd:   time.November,
		priceVolatility:   0.08,
	},
	CategoryConstruction: {
		products: []string{"Steel-Beams-001", "Concrete-Mix-002", "Lumber-2x4-003"},
		seasonalFactors: map[models.Season]float64{
			models.SeasonSpring: 1.4, models.SeasonSummer: 1.2, models.SeasonFall: 0.9, models.SeasonWinter: 0.5,
		},
		constructionStart: time.March,
		constructionEnd:   time.October,
		priceVolatility:   0.12,
	},
}

var baseDemands = map[string]float64{
	"Aluminium-Sheets-001":   500,
	"Aluminium-Profiles-002": 300,
	"Aluminium-Coils-003":    800,
	"Hardware-Screws-001":    2000,
	"Hardware-Bolts-002":     1500,
	"Hardware-Hinges-003":    800,
	"Steel-Beams-001":        200,
	"Concrete-Mix-002":       1000,
	"Lumber-2x4-003":         1500,
}

var basePrices = map[string]float64{
	"Aluminium-Sheets-001":   2.50,
	"Aluminium-Profiles-002": 3.20,
	"Aluminium-Coils-003":    1.80,
	"Hardware-Screws-001":    0.15,
	"Hardware-Bolts-002":     0.25,
	"Hardware-Hinges-003":    1.20,
	"Steel-Beams-001":        45.00,
	"Concrete-Mix-002":       8.50,
	"Lumber-2x4-003":         3.75,
}

var defaultPlants = []string{"plant001", "plant002", "plant003", "plant004"}

// CategoryOf 製品IDから製品カテゴリを判定
func CategoryOf(productID string) ProductCategory {
	switch {
	case strings.Contains(productID, "Aluminium"):
		return CategoryAluminium
	case strings.Contains(productID, "Hardware"):
		return CategoryHardware
	default:
		return CategoryConstruction
	}
}

// DefaultProducts 起動時に履歴を生成する製品の一覧
func DefaultProducts() []string {
	var products []string
	for _, category := range []ProductCategory{CategoryAluminium, CategoryHardware, CategoryConstruction} {
		products = append(products, categoryProfiles[category].products...)
	}
	return products
}

// DefaultPlants 起動時に履歴を生成する工場の一覧
func DefaultPlants() []string {
	return append([]string(nil), defaultPlants...)
}

// BaseDemand 製品ごとの基準需要。未知の製品は500。
func BaseDemand(productID string) float64 {
	if demand, ok := baseDemands[productID]; ok {
		return demand
	}
	return defaultBaseDemand
}

func basePrice(productID string) float64 {
	if price, ok := basePrices[productID]; ok {
		return price
	}
	return defaultBasePrice
}

// SeasonOf 月から季節を判定（3-5月 spring、6-8月 summer、9-11月 fall）
func SeasonOf(month time.Month) models.Season {
	switch {
	case month >= time.March && month <= time.May:
		return models.SeasonSpring
	case month >= time.June && month <= time.August:
		return models.SeasonSummer
	case month >= time.September && month <= time.November:
		return models.SeasonFall
	default:
		return models.SeasonWinter
	}
}
