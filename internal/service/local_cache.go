package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"nihongo_memo/internal/model"
	"nihongo_memo/internal/repository"
)

// LocalCache はコレクションのスナップショットをローカルストアに丸ごと読み書きします。
// どちらの操作も呼び出し側にエラーを返しません。
type LocalCache[T any] struct {
	repo   repository.SnapshotRepository
	logger *slog.Logger
}

func NewLocalCache[T any](repo repository.SnapshotRepository, logger *slog.Logger) *LocalCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalCache[T]{repo: repo, logger: logger}
}

// Load はキーが無い・壊れている場合は空のスライスを返します
func (c *LocalCache[T]) Load(ctx context.Context, key string) []T {
	payload, err := c.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			c.logger.WarnContext(ctx, "Failed to read local snapshot, starting empty",
				slog.String("key", key), slog.Any("error", err))
		}
		return []T{}
	}

	var records []T
	if err := json.Unmarshal(payload, &records); err != nil {
		c.logger.WarnContext(ctx, "Corrupt local snapshot, starting empty",
			slog.String("key", key), slog.Any("error", err))
		return []T{}
	}
	if records == nil {
		records = []T{}
	}
	return records
}

// Save はスナップショット全体を書き込みます。失敗はログに残すだけ
func (c *LocalCache[T]) Save(ctx context.Context, key string, records []T) {
	if records == nil {
		records = []T{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to encode local snapshot",
			slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.repo.Put(ctx, key, payload); err != nil {
		c.logger.ErrorContext(ctx, "Failed to save local snapshot",
			slog.String("key", key), slog.Int("records", len(records)), slog.Any("error", err))
	}
}
