// internal/config/constants.go
package config

// アプリケーション情報
const (
	AppName    = "nihongo-memo"
	AppVersion = "0.4.0"
)

// デフォルト設定値
const (
	DefaultServerPort       = ":8787"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogMaxSizeMB     = 10
	DefaultLogMaxBackups    = 3
	DefaultLogMaxAgeDays    = 28
	DefaultStoragePath      = "data/nihongo-memo.db"
	DefaultSettingsFileName = "settings.yaml"
	DefaultModelName        = "gemini-1.5-flash"
)

// ローカルキャッシュのキー。SPA の localStorage と同じ名前を使う
const (
	VocabularyStorageKey = "nihongo-memo-data"
	GrammarStorageKey    = "nihongo-memo-grammar-data"
	AdjectiveStorageKey  = "nihongo-memo-adjectives"
	DialogueStorageKey   = "nihongo-memo-dialogue-data"
)
