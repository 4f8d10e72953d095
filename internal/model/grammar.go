// internal/model/grammar.go
package model

import (
	"encoding/json"
	"time"
)

// GrammarEntry は文法ポイント (または複数文法の比較) を表します
type GrammarEntry struct {
	ID           string            `json:"id"`
	GrammarPoint string            `json:"grammarPoint"`
	Meaning      string            `json:"meaning"`
	Explanation  string            `json:"explanation"`
	Connection   string            `json:"connection"` // 接続ルール (V-te + ... など)
	Examples     []ExampleSentence `json:"examples"`
	IsComparison bool              `json:"is_comparison"`
	// 比較分析は自由テキストの場合と表形式の場合があるので生JSONのまま保持する
	ComparisonAnalysis json.RawMessage `json:"comparison_analysis,omitempty"`
	Items              []GrammarItem   `json:"items"`
	AddedAt            time.Time       `json:"addedAt"`
	Memorized          bool            `json:"memorized"`
}

// GrammarItem は比較エントリ内の個々の文法
type GrammarItem struct {
	GrammarPoint string            `json:"grammar_point"`
	Meaning      string            `json:"meaning,omitempty"`
	Explanation  string            `json:"explanation,omitempty"`
	Connection   string            `json:"connection,omitempty"`
	Examples     []ExampleSentence `json:"examples,omitempty"`
}

func (e GrammarEntry) EntryID() string   { return e.ID }
func (e GrammarEntry) IsMemorized() bool { return e.Memorized }

func (e GrammarEntry) WithMemorized(memorized bool) GrammarEntry {
	e.Memorized = memorized
	return e
}

// GrammarInput は生成AIが返す文法データ
type GrammarInput struct {
	GrammarPoint       string            `json:"grammar_point" validate:"required"`
	Meaning            string            `json:"meaning"`
	Explanation        string            `json:"explanation"`
	Connection         string            `json:"connection"`
	Examples           []ExampleSentence `json:"examples"`
	IsComparison       bool              `json:"is_comparison"`
	ComparisonAnalysis json.RawMessage   `json:"comparison_analysis,omitempty"`
	Items              []GrammarItem     `json:"items,omitempty" validate:"dive"`
}
