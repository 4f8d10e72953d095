// cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"nihongo_memo/internal/config"
	"nihongo_memo/internal/repository"
)

// リモート (PostgreSQL) にコレクション用のテーブルを作成します。
// 本番では SQL マイグレーションを使う想定で、これは開発・検証用
func main() {
	dryRun := flag.Bool("dry-run", false, "接続確認のみ行い、テーブルは作成しない")
	flag.Parse()

	logger, _ := config.NewLogger(config.LogConfig{Level: "info", Format: "text"}, os.Getenv("APP_ENV"))
	slog.SetDefault(logger)

	// 環境変数 DATABASE_URL から接続文字列を取得 (なければ設定ファイルの remote.url)
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		if err := config.LoadConfig("../configs"); err != nil {
			slog.Error("Error loading configuration", slog.Any("error", err))
			os.Exit(1)
		}
		dbURL = config.Cfg.Remote.URL
	}
	if dbURL == "" {
		slog.Error("DATABASE_URL (or remote.url) is not set")
		os.Exit(1)
	}

	db, err := repository.NewDB(context.Background(), dbURL, logger)
	if err != nil {
		os.Exit(1) // NewDB がログ出力済み
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}
	fmt.Println("Successfully connected to remote database using GORM!")

	if *dryRun {
		return
	}

	for _, table := range repository.RemoteTables() {
		if err := db.AutoMigrate(table); err != nil {
			slog.Error("Failed to auto migrate", slog.String("table", fmt.Sprintf("%T", table)), slog.Any("error", err))
			os.Exit(1)
		}
	}

	fmt.Println("Auto migration completed.")
}
