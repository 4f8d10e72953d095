// internal/model/adjective.go
package model

import "time"

// 形容詞・副詞の種類
const (
	AdjectiveTypeI      = "i-adjective"  // い形容詞
	AdjectiveTypeNa     = "na-adjective" // な形容詞
	AdjectiveTypeAdverb = "adverb"       // 副詞 (活用なし)
)

// AdjectiveEntry は形容詞・副詞カード1枚
type AdjectiveEntry struct {
	ID      string `json:"id"`
	Kanji   string `json:"kanji"`
	Kana    string `json:"kana"`
	Meaning string `json:"meaning"`
	Type    string `json:"type"`
	// 副詞の場合は nil
	Conjugations map[string]Conjugation `json:"conjugations"`
	Examples     []ExampleSentence      `json:"examples"`
	AddedAt      time.Time              `json:"addedAt"`
	Memorized    bool                   `json:"memorized"`
}

func (e AdjectiveEntry) EntryID() string   { return e.ID }
func (e AdjectiveEntry) IsMemorized() bool { return e.Memorized }

func (e AdjectiveEntry) WithMemorized(memorized bool) AdjectiveEntry {
	e.Memorized = memorized
	return e
}

// AdjectiveInput は生成AIが返す形容詞データ。ID が入っていればそれを使う
type AdjectiveInput struct {
	ID           string                 `json:"id,omitempty"`
	Kanji        string                 `json:"kanji" validate:"required"`
	Kana         string                 `json:"kana"`
	Meaning      string                 `json:"meaning"`
	Type         string                 `json:"type" validate:"omitempty,oneof=i-adjective na-adjective adverb"`
	Conjugations map[string]Conjugation `json:"conjugations,omitempty"`
	Examples     []ExampleSentence      `json:"examples,omitempty"`
}
