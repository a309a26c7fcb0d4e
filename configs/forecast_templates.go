package config

import (
	"fmt"
	"os"

	"materials-forecast-api/pkg/models"

	"gopkg.in/yaml.v3"
)

// forecastTemplateFile YAMLファイルの形式
//
//	configs:
//	  - id: aluminium_config
//	    algorithm: lstm
//	    horizon: 90
type forecastTemplateFile struct {
	Configs []models.ForecastingConfig `yaml:"configs"`
}

// LoadForecastTemplates YAMLファイルから予測設定のテンプレートを読み込む
func LoadForecastTemplates(path string) ([]models.ForecastingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("予測設定ファイルの読み込みに失敗: %w", err)
	}
	return ParseForecastTemplates(data)
}

// ParseForecastTemplates YAMLを解析する。空のファイルはエラー。
func ParseForecastTemplates(data []byte) ([]models.ForecastingConfig, error) {
	var file forecastTemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("予測設定ファイルの解析に失敗: %w", err)
	}
	if len(file.Configs) == 0 {
		return nil, fmt.Errorf("予測設定が1件もありません")
	}
	return file.Configs, nil
}
