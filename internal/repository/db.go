package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm" // slogGormはエイリアス
	"gorm.io/driver/postgres"               // リモート (クラウド) 用
	"gorm.io/driver/sqlite"                 // ローカルキャッシュ用
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newGormLogger は slog を利用する GORM Logger を作成します
func newGormLogger(appLogger *slog.Logger) gormlogger.Interface {
	// APP_ENV によって GORM のログレベルを切り替え
	var gormLogLevel gormlogger.LogLevel
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		gormLogLevel = gormlogger.Info
	} else {
		gormLogLevel = gormlogger.Warn
	}

	return slogGorm.New(
		slogGorm.WithHandler(appLogger.Handler()),
		slogGorm.WithSlowThreshold(500*time.Millisecond), // 遅いクエリの閾値
	).LogMode(gormLogLevel)
}

// NewDB はリモートバックエンド (PostgreSQL) へ接続します
func NewDB(ctx context.Context, databaseURL string, appLogger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:               newGormLogger(appLogger),
		DisableAutomaticPing: true, // 接続確認は下の PingContext で行う
	})
	if err != nil {
		appLogger.Error("Failed to connect to database with GORM", slog.Any("error", err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		return nil, err
	}

	// Pingで接続確認 (呼び出し元の ctx で打ち切れる)
	if err = sqlDB.PingContext(ctx); err != nil {
		appLogger.Error("Error pinging database", slog.Any("error", err))
		sqlDB.Close() // Ping失敗時はここでClose
		return nil, err
	}

	// クライアント1台分なので小さめのプール
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetConnMaxLifetime(time.Hour)

	appLogger.Info("Remote database connection established with GORM")
	return db, nil
}

// NewLocalDB はローカルキャッシュ用の SQLite を開き、スナップショットテーブルを作成します
func NewLocalDB(path string, appLogger *slog.Logger) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("repository.NewLocalDB: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(appLogger),
	})
	if err != nil {
		appLogger.Error("Failed to open local cache", slog.String("path", path), slog.Any("error", err))
		return nil, fmt.Errorf("repository.NewLocalDB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("repository.NewLocalDB: %w", err)
	}
	// 書き込みは1本に絞る (キー単位の last-writer-wins をSQLite側で直列化する)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("repository.NewLocalDB: migrate: %w", err)
	}

	appLogger.Info("Local cache opened", slog.String("path", path))
	return db, nil
}
