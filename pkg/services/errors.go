package services

import "errors"

// 予測処理で呼び出し元に返すエラー種別。errors.Is で判定する。
var (
	ErrConfigNotFound       = errors.New("forecasting config not found")
	ErrNoHistoricalData     = errors.New("no historical data")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidWeights       = errors.New("invalid ensemble weights")
	ErrInvalidConfig        = errors.New("invalid forecasting config")
	ErrEmptySeries          = errors.New("empty demand series")
	ErrHistoryAlreadyLoaded = errors.New("historical data already loaded")
)
