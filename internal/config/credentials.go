// internal/config/credentials.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"nihongo_memo/internal/model"
)

const (
	keyAPIKey    = "ai.api_key"
	keyModelName = "ai.model_name"
	keyRemoteURL = "remote.url"
	keyRemoteKey = "remote.key"
)

// CredentialStore はAPIキー・モデル名・リモート接続設定を保持する永続キーバリューストアです。
// 同期層はこれを直接読みません。リモート設定の変更は OnChange で ClientFactory に伝わります。
type CredentialStore struct {
	mu        sync.Mutex
	v         *viper.Viper
	path      string
	logger    *slog.Logger
	listeners []func(model.RemoteConfig)
	last      model.RemoteConfig
}

// CredentialDefaults は設定ファイルに値が無い場合の初期値 (config.yaml / 環境変数由来)
type CredentialDefaults struct {
	APIKey    string
	ModelName string
	Remote    model.RemoteConfig
}

// NewCredentialStore は path の設定ファイルを読み込みます。ファイルが無くてもエラーにしません。
func NewCredentialStore(path string, defaults CredentialDefaults, logger *slog.Logger) (*CredentialStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault(keyAPIKey, defaults.APIKey)
	v.SetDefault(keyModelName, DefaultModelName)
	if defaults.ModelName != "" {
		v.SetDefault(keyModelName, defaults.ModelName)
	}
	v.SetDefault(keyRemoteURL, defaults.Remote.URL)
	v.SetDefault(keyRemoteKey, defaults.Remote.Key)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config.NewCredentialStore: %w", err)
		}
		logger.Info("Settings file not found, using defaults", slog.String("path", path))
	}

	s := &CredentialStore{
		v:      v,
		path:   path,
		logger: logger.With(slog.String("component", "credential_store")),
	}
	s.last = s.remoteConfigLocked()
	return s, nil
}

func (s *CredentialStore) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(keyAPIKey)
}

func (s *CredentialStore) SetAPIKey(key string) error {
	return s.update(map[string]any{"ai": map[string]any{"api_key": key}})
}

func (s *CredentialStore) ModelName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(keyModelName)
}

func (s *CredentialStore) SetModelName(name string) error {
	return s.update(map[string]any{"ai": map[string]any{"model_name": name}})
}

func (s *CredentialStore) RemoteConfig() model.RemoteConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteConfigLocked()
}

// SetRemoteConfig は接続設定を保存し、値が変わっていればリスナーに通知します
func (s *CredentialStore) SetRemoteConfig(url, key string) error {
	return s.update(map[string]any{"remote": map[string]any{"url": url, "key": key}})
}

// OnChange はリモート設定が変わった時に呼ばれる関数を登録します
func (s *CredentialStore) OnChange(fn func(model.RemoteConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch は設定ファイルの外部からの編集を監視します
func (s *CredentialStore) Watch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Info("Settings file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		s.notifyIfChanged()
	})
	s.v.WatchConfig()
}

// update は値をマージしてファイルに書き出します。
// viper.Set は上書き層に入りファイル再読込を覆い隠すので MergeConfigMap を使う。
func (s *CredentialStore) update(values map[string]any) error {
	s.mu.Lock()
	if err := s.v.MergeConfigMap(values); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("config.CredentialStore.update: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("config.CredentialStore.update: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to persist settings", slog.Any("error", err))
		return fmt.Errorf("config.CredentialStore.update: %w", err)
	}
	s.mu.Unlock()

	s.notifyIfChanged()
	return nil
}

func (s *CredentialStore) notifyIfChanged() {
	s.mu.Lock()
	current := s.remoteConfigLocked()
	if current == s.last {
		s.mu.Unlock()
		return
	}
	s.last = current
	listeners := append([]func(model.RemoteConfig){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Remote configuration changed", slog.Bool("configured", current.Configured()))
	for _, fn := range listeners {
		fn(current)
	}
}

func (s *CredentialStore) remoteConfigLocked() model.RemoteConfig {
	return model.RemoteConfig{
		URL: s.v.GetString(keyRemoteURL),
		Key: s.v.GetString(keyRemoteKey),
	}
}
