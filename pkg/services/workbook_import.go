package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

var workbookDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"01-02-06",
	time.RFC3339,
}

// ReadWorkbookRows .xlsx（先頭シート）または .csv を行単位で読み込む
func ReadWorkbookRows(r io.Reader, fileName string) ([][]string, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("Excelファイルの読み込みに失敗: %w", err)
		}
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("Excelシートの行取得に失敗: %w", err)
		}
		return rows, nil
	case strings.HasSuffix(lower, ".csv"):
		rows, err := csv.NewReader(r).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("CSVファイルの解析に失敗: %w", err)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("サポートされていないファイル形式です: %s", fileName)
	}
}

// ParseHistoricalRows ERPエクスポートの行を productId-plantId ごとの履歴に変換する
//
// 必須列: date, product_id, plant_id, demand。supply/stock/price は任意。
// 同じ日付の行が複数ある場合は後の行を採用する。
func ParseHistoricalRows(rows [][]string) (map[string][]models.HistoricalData, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("ヘッダー行と少なくとも1行のデータが必要です")
	}

	header := rows[0]
	dateIdx := findColumn(header, "date", "日付")
	productIdx := findColumn(header, "product_id", "productId", "product", "製品ID")
	plantIdx := findColumn(header, "plant_id", "plantId", "plant", "工場ID")
	demandIdx := findColumn(header, "demand", "quantity", "需要")
	supplyIdx := findColumn(header, "supply", "供給")
	stockIdx := findColumn(header, "stock", "在庫")
	priceIdx := findColumn(header, "price", "価格")

	var missing []string
	for name, idx := range map[string]int{"date": dateIdx, "product_id": productIdx, "plant_id": plantIdx, "demand": demandIdx} {
		if idx == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("必要な列が見つかりませんでした: %s", strings.Join(missing, ", "))
	}

	type seriesKey struct{ product, plant string }
	byKey := make(map[seriesKey]map[string]models.HistoricalData)

	for lineNo, row := range rows[1:] {
		cell := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		date, err := parseWorkbookDate(cell(dateIdx))
		if err != nil {
			return nil, fmt.Errorf("%d行目: %w", lineNo+2, err)
		}
		demand, err := parseWorkbookInt(cell(demandIdx))
		if err != nil {
			return nil, fmt.Errorf("%d行目 demand: %w", lineNo+2, err)
		}
		key := seriesKey{product: cell(productIdx), plant: cell(plantIdx)}
		if key.product == "" || key.plant == "" {
			return nil, fmt.Errorf("%d行目: product_id と plant_id は必須です", lineNo+2)
		}

		record := models.HistoricalData{
			ProductID: key.product,
			PlantID:   key.plant,
			Date:      date,
			Demand:    demand,
		}
		if v := cell(supplyIdx); v != "" {
			if record.Supply, err = parseWorkbookInt(v); err != nil {
				return nil, fmt.Errorf("%d行目 supply: %w", lineNo+2, err)
			}
		}
		if v := cell(stockIdx); v != "" {
			if record.Stock, err = parseWorkbookInt(v); err != nil {
				return nil, fmt.Errorf("%d行目 stock: %w", lineNo+2, err)
			}
		}
		if v := cell(priceIdx); v != "" {
			if record.Price, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%d行目 price: %w", lineNo+2, err)
			}
		}

		if byKey[key] == nil {
			byKey[key] = make(map[string]models.HistoricalData)
		}
		byKey[key][date.Format("2006-01-02")] = record
	}

	result := make(map[string][]models.HistoricalData, len(byKey))
	for key, days := range byKey {
		records := make([]models.HistoricalData, 0, len(days))
		for _, r := range days {
			records = append(records, r)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
		historyKey := HistoryKey(key.product, key.plant)
		for i := range records {
			records[i].ID = fmt.Sprintf("hist_%s_%d", historyKey, i)
		}
		result[historyKey] = records
	}
	return result, nil
}

// ImportWorkbook ファイルを読み込んでストアに登録する。登録したキー数を返す。
func (s *HistoricalStore) ImportWorkbook(r io.Reader, fileName string) (int, error) {
	rows, err := ReadWorkbookRows(r, fileName)
	if err != nil {
		return 0, err
	}
	parsed, err := ParseHistoricalRows(rows)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(parsed))
	for key := range parsed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	// 既存キーと重なる場合は何も登録しない
	for _, key := range keys {
		if _, exists := s.Get(parsed[key][0].ProductID, parsed[key][0].PlantID); exists {
			return 0, fmt.Errorf("%s: %w", key, ErrHistoryAlreadyLoaded)
		}
	}
	for _, key := range keys {
		records := parsed[key]
		if err := s.Load(records[0].ProductID, records[0].PlantID, records); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// findColumn 候補名のいずれかに一致する列のインデックス（大文字小文字無視）
func findColumn(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), candidate) {
				return i
			}
		}
	}
	return -1
}

func parseWorkbookDate(value string) (time.Time, error) {
	for _, layout := range workbookDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("日付の形式が不正です: %q", value)
}

func parseWorkbookInt(value string) (int, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("負の値は使用できません: %v", f)
	}
	return int(f + 0.5), nil
}
