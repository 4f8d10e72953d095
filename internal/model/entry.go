// internal/model/entry.go
package model

// Entry はコレクションに格納されるレコードが満たすべき制約です。
// 値型のまま扱い、更新は WithMemorized でコピーを返します。
type Entry[T any] interface {
	EntryID() string
	IsMemorized() bool
	WithMemorized(memorized bool) T
}

// コレクション名 (ログ・APIパス用)
const (
	CollectionVocabulary = "vocabulary"
	CollectionGrammar    = "grammar"
	CollectionAdjectives = "adjectives"
	CollectionDialogues  = "dialogues"
)

// ExampleSentence は {jp, ruby, zh} 形式の例文
type ExampleSentence struct {
	JP   string `json:"jp"`
	Ruby string `json:"ruby,omitempty"` // <ruby> タグ付きHTML
	ZH   string `json:"zh"`
}

// Conjugation は活用形1つ分 (form / 説明 / 例文)
type Conjugation struct {
	Form        string           `json:"form"`
	Explanation string           `json:"explanation"`
	Example     *ExampleSentence `json:"example,omitempty"`
}

// SyncState は同期処理の状態
type SyncState int

const (
	StateHydrating SyncState = iota
	StateIdle
	StateSyncing
)

func (s SyncState) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}
