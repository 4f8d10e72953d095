// internal/config/config.go
package config

import (
	"errors"
	"log"
	"path/filepath"

	"github.com/spf13/viper"

	"nihongo_memo/internal/model"
)

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "text"
	File       string `mapstructure:"file"`   // 空ならファイル出力なし
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Log     LogConfig `mapstructure:"log"`
	Storage struct {
		Path         string `mapstructure:"path"`          // ローカルキャッシュ (SQLite) のパス
		SettingsFile string `mapstructure:"settings_file"` // 認証情報ストアのファイル
	} `mapstructure:"storage"`
	// Remote は初期値。実行中の値は CredentialStore が持つ
	Remote model.RemoteConfig `mapstructure:"remote"`
	AI     struct {
		APIKey    string `mapstructure:"api_key"`
		ModelName string `mapstructure:"model_name"`
	} `mapstructure:"ai"`
	Session struct {
		Token string `mapstructure:"token"` // 起動時に使うアクセストークン (任意)
	} `mapstructure:"session"`
	CORS CORSConfig `mapstructure:"cors"`
}

var Cfg Config

func LoadConfig(path string) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	// 例: APP_REMOTE_URL, APP_LOG_LEVEL
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.BindEnv("remote.url", "REMOTE_URL")
	v.BindEnv("remote.key", "REMOTE_KEY")
	v.BindEnv("ai.api_key", "GEMINI_API_KEY")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAgeDays)
	v.SetDefault("storage.path", DefaultStoragePath)
	v.SetDefault("ai.model_name", DefaultModelName)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.max_age", 300)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("Warning: Config file not found. Using default settings or environment variables if available.")
		} else {
			log.Printf("Error reading config file: %s\n", err)
			return err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("Error unmarshalling config: %s\n", err)
		return err
	}

	// 設定ファイルの場所はキャッシュと同じディレクトリをデフォルトにする
	if cfg.Storage.SettingsFile == "" {
		cfg.Storage.SettingsFile = filepath.Join(filepath.Dir(cfg.Storage.Path), DefaultSettingsFileName)
	}
	if !cfg.Remote.Configured() {
		log.Println("Remote backend not configured, running in offline mode")
	}

	Cfg = cfg
	log.Println("Config loaded successfully")
	log.Printf("Server Port: %s", Cfg.Server.Port)
	log.Printf("Local cache: %s", Cfg.Storage.Path)
	return nil
}
