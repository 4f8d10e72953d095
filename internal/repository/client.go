package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"nihongo_memo/internal/model"

	"gorm.io/gorm"
)

// Opener は接続URLからバックエンドのクライアントを作る関数 (テストでは SQLite に差し替える)
type Opener func(ctx context.Context, url string, logger *slog.Logger) (*gorm.DB, error)

// ClientSource はリモートストアがクライアントを取得するためのインターフェース
type ClientSource interface {
	// Client は未設定なら (nil, nil) を返す。接続失敗は ErrRemoteUnavailable
	Client(ctx context.Context) (*gorm.DB, error)
	Config() model.RemoteConfig
}

// ClientFactory はリモートクライアントの唯一の持ち主です。
// 設定が変わったら古いクライアントを閉じ、次の Client 呼び出しで作り直します。
// 接続処理 (Opener) はロックの外で行うので、接続待ちの間も Config / Reconfigure はすぐ返る。
type ClientFactory struct {
	mu     sync.Mutex
	cfg    model.RemoteConfig
	gen    uint64 // Reconfigure のたびに進む
	client *gorm.DB
	open   Opener
	logger *slog.Logger
}

type ClientFactoryOption func(*ClientFactory)

// WithOpener は接続処理を差し替えます
func WithOpener(open Opener) ClientFactoryOption {
	return func(f *ClientFactory) {
		f.open = open
	}
}

func NewClientFactory(cfg model.RemoteConfig, logger *slog.Logger, opts ...ClientFactoryOption) *ClientFactory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ClientFactory{
		cfg:    cfg,
		open:   NewDB,
		logger: logger.With(slog.String("component", "client_factory")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ClientFactory) Config() model.RemoteConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *ClientFactory) Client(ctx context.Context) (*gorm.DB, error) {
	f.mu.Lock()
	cfg, gen, client := f.cfg, f.gen, f.client
	f.mu.Unlock()

	if !cfg.Configured() {
		return nil, nil // オフラインモード (エラーではない)
	}
	if client != nil {
		return client, nil
	}

	opened, err := f.open(ctx, cfg.URL, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Remote backend unreachable", slog.Any("error", err))
		return nil, fmt.Errorf("ClientFactory.Client: %w: %w", model.ErrRemoteUnavailable, err)
	}

	f.mu.Lock()
	switch {
	case gen != f.gen:
		// 接続中に設定が変わった。古い設定のクライアントは使わない
		f.mu.Unlock()
		closeClient(opened, f.logger)
		f.logger.InfoContext(ctx, "Discarded client opened for a stale configuration")
		return f.Client(ctx)
	case f.client != nil:
		// 並行して開いた別の呼び出しが先に設定した
		existing := f.client
		f.mu.Unlock()
		closeClient(opened, f.logger)
		return existing, nil
	default:
		f.client = opened
		f.mu.Unlock()
		return opened, nil
	}
}

// Reconfigure は設定を差し替えます。同じ設定なら何もしません。
func (f *ClientFactory) Reconfigure(cfg model.RemoteConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cfg == f.cfg {
		return
	}
	f.closeLocked()
	f.cfg = cfg
	f.gen++
	f.logger.Info("Remote configuration applied", slog.Bool("configured", cfg.Configured()))
}

func (f *ClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

func (f *ClientFactory) closeLocked() error {
	client := f.client
	f.client = nil
	return closeClient(client, f.logger)
}

func closeClient(client *gorm.DB, logger *slog.Logger) error {
	if client == nil {
		return nil
	}
	sqlDB, err := client.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing remote connection", slog.Any("error", err))
		return err
	}
	return nil
}
