package services

import (
	"fmt"
	"sort"
	"sync"

	"materials-forecast-api/pkg/models"
)

// HistoricalStore 製品×工場ごとの履歴データを保持する
//
// 各キーは一度だけロードされ、その後は読み取り専用として全モデルで共有する。
type HistoricalStore struct {
	mu     sync.RWMutex
	series map[string][]models.HistoricalData
}

// NewHistoricalStore 空のストアを作成
func NewHistoricalStore() *HistoricalStore {
	return &HistoricalStore{
		series: make(map[string][]models.HistoricalData),
	}
}

// HistoryKey 履歴ストアのキー（productId-plantId）
func HistoryKey(productID, plantID string) string {
	return productID + "-" + plantID
}

// Load 1キー分の履歴を登録する。同じキーへの2回目のロードはエラー。
func (s *HistoricalStore) Load(productID, plantID string, records []models.HistoricalData) error {
	key := HistoryKey(productID, plantID)

	sorted := make([]models.HistoricalData, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.series[key]; exists {
		return fmt.Errorf("%s: %w", key, ErrHistoryAlreadyLoaded)
	}
	s.series[key] = sorted
	return nil
}

// Get 履歴を返す。返したスライスは共有なので呼び出し側で変更しないこと。
func (s *HistoricalStore) Get(productID, plantID string) ([]models.HistoricalData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.series[HistoryKey(productID, plantID)]
	return records, ok
}

// Snapshot 履歴のコピーを返す（外部公開用）
func (s *HistoricalStore) Snapshot(productID, plantID string) []models.HistoricalData {
	records, ok := s.Get(productID, plantID)
	if !ok {
		return []models.HistoricalData{}
	}
	out := make([]models.HistoricalData, len(records))
	copy(out, records)
	return out
}

// Keys 登録済みのキー一覧（ソート済み）
func (s *HistoricalStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.series))
	for key := range s.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SeedFromGenerator 製品×工場の全組み合わせについて履歴を生成して登録
func (s *HistoricalStore) SeedFromGenerator(generator *HistoricalGenerator, products, plants []string) error {
	for _, productID := range products {
		for _, plantID := range plants {
			if err := s.Load(productID, plantID, generator.Generate(productID, plantID)); err != nil {
				return fmt.Errorf("履歴データの生成に失敗: %w", err)
			}
		}
	}
	return nil
}

// demandSeries 履歴から需要の数値系列を取り出す
func demandSeries(records []models.HistoricalData) []float64 {
	series := make([]float64, len(records))
	for i, r := range records {
		series[i] = float64(r.Demand)
	}
	return series
}

// tail 末尾n件を返す（n件未満なら全件）
func tail(records []models.HistoricalData, n int) []models.HistoricalData {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}
