// internal/config/logger.go
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel はconfig.yamlのログレベル文字列をslog.Levelに変換します
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false // 不明な場合はInfo
	}
}

// NewLogger は設定と APP_ENV からアプリケーション全体のロガーを組み立てます。
// 返り値の io.Closer はログファイルを閉じるためのもの (ファイル出力なしなら nil)。
func NewLogger(cfg LogConfig, appEnv string) (*slog.Logger, io.Closer) {
	logLevel := new(slog.LevelVar)
	level, known := ParseLevel(cfg.Level)
	logLevel.Set(level)

	var out io.Writer = os.Stderr
	var closer io.Closer
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}

	var handler slog.Handler
	switch {
	case strings.ToLower(appEnv) == "dev":
		handler = tint.NewHandler(out, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.File != "", // ファイルにエスケープシーケンスを残さない
		})
	case strings.ToLower(cfg.Format) == "text":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})
	}

	logger := slog.New(handler)
	if !known {
		logger.Warn("Unknown log level specified in config, defaulting to INFO", slog.String("level", cfg.Level))
	}
	return logger, closer
}
