// internal/model/vocabulary.go
package model

import "time"

// VocabularyEntry は動詞・単語カード1枚を表します
type VocabularyEntry struct {
	ID           string                 `json:"id"`
	Kanji        string                 `json:"kanji"`             // 見出し語
	Kana         string                 `json:"kana"`              // 読み
	Meaning      string                 `json:"meaning"`           // 意味
	Example      string                 `json:"example,omitempty"` // 旧形式の単純な例文
	Type         string                 `json:"type"`              // 品詞 (一段動詞 など)
	Conjugations map[string]Conjugation `json:"conjugations,omitempty"`
	Examples     []VocabularyExample    `json:"examples"`
	AddedAt      time.Time              `json:"addedAt"`
	Memorized    bool                   `json:"memorized"`
}

// VocabularyExample は単語用の一般例文
type VocabularyExample struct {
	Japanese string `json:"japanese"`
	Chinese  string `json:"chinese"`
}

func (e VocabularyEntry) EntryID() string   { return e.ID }
func (e VocabularyEntry) IsMemorized() bool { return e.Memorized }

func (e VocabularyEntry) WithMemorized(memorized bool) VocabularyEntry {
	e.Memorized = memorized
	return e
}

// VocabularyInput は生成AIが返す単語データ (追加リクエストDTO)
type VocabularyInput struct {
	Kanji        string                 `json:"kanji" validate:"required"`
	Kana         string                 `json:"kana"`
	Meaning      string                 `json:"meaning"`
	Example      string                 `json:"example,omitempty"`
	Type         string                 `json:"type"`
	Conjugations map[string]Conjugation `json:"conjugations,omitempty"`
	Examples     []VocabularyExample    `json:"examples,omitempty"`
}
