package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"materials-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestHistoricalStoreLoadOnce(t *testing.T) {
	store := NewHistoricalStore()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []models.HistoricalData{
		{ProductID: "P", PlantID: "X", Date: day.AddDate(0, 0, 1), Demand: 20},
		{ProductID: "P", PlantID: "X", Date: day, Demand: 10},
	}

	require.NoError(t, store.Load("P", "X", records))
	err := store.Load("P", "X", records)
	assert.ErrorIs(t, err, ErrHistoryAlreadyLoaded)

	got, ok := store.Get("P", "X")
	require.True(t, ok)
	assert.Equal(t, 10, got[0].Demand, "records are sorted by date")
	assert.Equal(t, 20, records[0].Demand, "caller slice is not reordered")
}

func TestHistoricalStoreSnapshot(t *testing.T) {
	store := NewHistoricalStore()
	require.NoError(t, store.Load("P", "X", []models.HistoricalData{{Demand: 5}}))

	snapshot := store.Snapshot("P", "X")
	snapshot[0].Demand = 999
	got, _ := store.Get("P", "X")
	assert.Equal(t, 5, got[0].Demand)

	missing := store.Snapshot("nope", "X")
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
	assert.Equal(t, []string{"P-X"}, store.Keys())
}

func TestSeedFromGenerator(t *testing.T) {
	store := seededStore(t, []string{"Steel-Beams-001", "Hardware-Screws-001"}, []string{"plant001", "plant002"})

	assert.Len(t, store.Keys(), 4)
	records, ok := store.Get("Hardware-Screws-001", "plant002")
	require.True(t, ok)
	assert.Len(t, records, HistoryDays)
}

const historyCSV = `date,product_id,plant_id,demand,supply,stock,price
2025-01-02,Steel-Beams-001,plant001,120,110,300,45.5
2025-01-01,Steel-Beams-001,plant001,100,90,280,45.0
2025-01-02,Steel-Beams-001,plant001,125,115,310,45.5
2025-01-01,Lumber-2x4-003,plant009,900,,,
`

func TestImportWorkbookCSV(t *testing.T) {
	store := NewHistoricalStore()

	n, err := store.ImportWorkbook(strings.NewReader(historyCSV), "erp_export.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	steel, ok := store.Get("Steel-Beams-001", "plant001")
	require.True(t, ok)
	require.Len(t, steel, 2)
	assert.Equal(t, 100, steel[0].Demand)
	assert.Equal(t, 125, steel[1].Demand, "last row for a day wins")
	assert.Equal(t, 310, steel[1].Stock)
	assert.Equal(t, 45.5, steel[1].Price)
	assert.Equal(t, "hist_Steel-Beams-001-plant001_1", steel[1].ID)

	lumber, ok := store.Get("Lumber-2x4-003", "plant009")
	require.True(t, ok)
	assert.Equal(t, 0, lumber[0].Stock)
}

func TestImportWorkbookRejectsExistingKeys(t *testing.T) {
	store := NewHistoricalStore()
	require.NoError(t, store.Load("Lumber-2x4-003", "plant009", []models.HistoricalData{{Demand: 1}}))

	_, err := store.ImportWorkbook(strings.NewReader(historyCSV), "erp_export.csv")
	assert.ErrorIs(t, err, ErrHistoryAlreadyLoaded)

	_, ok := store.Get("Steel-Beams-001", "plant001")
	assert.False(t, ok, "nothing is loaded when any key collides")
}

func TestImportWorkbookXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"日付", "製品ID", "工場ID", "需要", "在庫"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2025/03/01", "Aluminium-Coils-003", "plant002", 810, 1500}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"2025/03/02", "Aluminium-Coils-003", "plant002", 790, 1450}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	store := NewHistoricalStore()
	n, err := store.ImportWorkbook(bytes.NewReader(buf.Bytes()), "export.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, ok := store.Get("Aluminium-Coils-003", "plant002")
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, 790, records[1].Demand)
	assert.Equal(t, 1450, records[1].Stock)
}

func TestParseHistoricalRowsErrors(t *testing.T) {
	_, err := ParseHistoricalRows([][]string{{"date", "demand"}})
	assert.Error(t, err)

	_, err = ParseHistoricalRows([][]string{{"date", "demand"}, {"2025-01-01", "3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plant_id")
	assert.Contains(t, err.Error(), "product_id")

	_, err = ParseHistoricalRows([][]string{
		{"date", "product_id", "plant_id", "demand"},
		{"2025-01-01", "P", "X", "-4"},
	})
	assert.Error(t, err)

	_, err = ReadWorkbookRows(strings.NewReader(""), "notes.txt")
	assert.Error(t, err)
}
