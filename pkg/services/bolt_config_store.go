package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"materials-forecast-api/pkg/models"

	"go.etcd.io/bbolt"
)

var configBucket = []byte("forecasting_configs")

// BoltConfigStore BoltDB に予測設定を JSON で保存する
type BoltConfigStore struct {
	db *bbolt.DB
}

// NewBoltConfigStore DBファイルを開き、バケットを作成する
func NewBoltConfigStore(dbPath string) (*BoltConfigStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for bolt db: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(configBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", configBucket, err)
	}
	return &BoltConfigStore{db: db}, nil
}

// LoadAll 保存済みの設定をすべて読み込む
func (s *BoltConfigStore) LoadAll() ([]models.ForecastingConfig, error) {
	var configs []models.ForecastingConfig
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(configBucket)
		if bucket == nil {
			return fmt.Errorf("%s bucket not found", configBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var cfg models.ForecastingConfig
			if err := json.Unmarshal(v, &cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config %s: %w", k, err)
			}
			configs = append(configs, cfg)
			return nil
		})
	})
	return configs, err
}

// Save 設定を保存（同じIDは上書き）
func (s *BoltConfigStore) Save(cfg models.ForecastingConfig) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(configBucket)
		if bucket == nil {
			return fmt.Errorf("%s bucket not found", configBucket)
		}
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		return bucket.Put([]byte(cfg.ID), data)
	})
}

// Close DBを閉じる
func (s *BoltConfigStore) Close() error {
	return s.db.Close()
}
