//go:generate mockery --name SnapshotRepository --output ./mocks --outpkg mocks --case=underscore
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nihongo_memo/internal/middleware"
	"nihongo_memo/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot はコレクション1つ分のシリアライズ済みスナップショット (行 = キー)
type Snapshot struct {
	CollectionKey string `gorm:"primaryKey;type:varchar(128)"`
	Payload       []byte `gorm:"not null"`
	UpdatedAt     time.Time
}

func (Snapshot) TableName() string {
	return "collection_snapshots"
}

// SnapshotRepository はローカルキャッシュのキーバリュー操作です。
// 書き込みは常にスナップショット全体で、差分は扱いません。
type SnapshotRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

type gormSnapshotRepository struct {
	db *gorm.DB
}

func NewGormSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &gormSnapshotRepository{db: db}
}

func (r *gormSnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	logger := middleware.GetLogger(ctx)
	var snap Snapshot
	result := r.db.WithContext(ctx).Where("collection_key = ?", key).First(&snap)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error reading snapshot from local cache",
			"error", result.Error,
			"collection_key", key,
		)
		return nil, fmt.Errorf("gormSnapshotRepository.Get: %w", result.Error)
	}
	return snap.Payload, nil
}

// Put はキー単位の upsert。同じキーへの並行書き込みは後勝ちになる
func (r *gormSnapshotRepository) Put(ctx context.Context, key string, payload []byte) error {
	logger := middleware.GetLogger(ctx)
	snap := &Snapshot{
		CollectionKey: key,
		Payload:       payload,
		UpdatedAt:     time.Now(),
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(snap)
	if result.Error != nil {
		logger.Error("Error writing snapshot to local cache",
			"error", result.Error,
			"collection_key", key,
			"bytes", len(payload),
		)
		return fmt.Errorf("gormSnapshotRepository.Put: %w", result.Error)
	}
	return nil
}

func (r *gormSnapshotRepository) Delete(ctx context.Context, key string) error {
	logger := middleware.GetLogger(ctx)
	result := r.db.WithContext(ctx).Where("collection_key = ?", key).Delete(&Snapshot{})
	if result.Error != nil {
		logger.Error("Error deleting snapshot from local cache",
			"error", result.Error,
			"collection_key", key,
		)
		return fmt.Errorf("gormSnapshotRepository.Delete: %w", result.Error)
	}
	return nil
}
