package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"nihongo_memo/internal/model"

	"gorm.io/datatypes"
)

// リモートテーブルの行。ネストした構造は JSON(B) カラムに入れる。
// JSON カラムは SQL の NULL ではなく JSON の null を入れる
type VocabularyRow struct {
	ID           string         `gorm:"primaryKey"`
	UserID       string         `gorm:"not null;index"`
	Kanji        string         `gorm:"not null"`
	Kana         string
	Meaning      string
	Type         string
	Conjugations datatypes.JSON `gorm:"not null"`
	Examples     datatypes.JSON `gorm:"not null"`
	AddedAt      time.Time      `gorm:"not null;index"`
	Memorized    bool           `gorm:"not null"`
}

func (VocabularyRow) TableName() string {
	return "vocabulary"
}

type GrammarRow struct {
	ID                 string         `gorm:"primaryKey"`
	UserID             string         `gorm:"not null;index"`
	GrammarPoint       string         `gorm:"not null"`
	Meaning            string
	Explanation        string
	Connection         string
	Examples           datatypes.JSON `gorm:"not null"`
	IsComparison       bool           `gorm:"not null"`
	ComparisonAnalysis datatypes.JSON `gorm:"not null"`
	Items              datatypes.JSON `gorm:"not null"`
	AddedAt            time.Time      `gorm:"not null;index"`
	Memorized          bool           `gorm:"not null"`
}

func (GrammarRow) TableName() string {
	return "grammar"
}

type AdjectiveRow struct {
	ID           string         `gorm:"primaryKey"`
	UserID       string         `gorm:"not null;index"`
	Kanji        string         `gorm:"not null"`
	Kana         string
	Meaning      string
	Type         string
	Conjugations datatypes.JSON `gorm:"not null"` // 副詞は null
	Examples     datatypes.JSON `gorm:"not null"`
	AddedAt      time.Time      `gorm:"not null;index"`
	Memorized    bool           `gorm:"not null"`
}

func (AdjectiveRow) TableName() string {
	return "adjectives"
}

type DialogueRow struct {
	ID           string         `gorm:"primaryKey"`
	UserID       string         `gorm:"not null;index"`
	Scenario     string         `gorm:"not null"`
	Description  string
	DialogueData datatypes.JSON `gorm:"not null"`
	AddedAt      time.Time      `gorm:"not null;index"`
	Memorized    bool           `gorm:"not null"`
}

func (DialogueRow) TableName() string {
	return "dialogues"
}

// RemoteTables はマイグレーション対象の全テーブル
func RemoteTables() []any {
	return []any{&VocabularyRow{}, &GrammarRow{}, &AdjectiveRow{}, &DialogueRow{}}
}

// --- 行 <-> レコードの変換 ---

var VocabularyMapper = RowMapper[model.VocabularyEntry, VocabularyRow]{
	ToRow: func(userID string, e model.VocabularyEntry) (VocabularyRow, error) {
		conj, err := encodeJSON(e.Conjugations)
		if err != nil {
			return VocabularyRow{}, fmt.Errorf("conjugations: %w", err)
		}
		examples, err := encodeJSON(e.Examples)
		if err != nil {
			return VocabularyRow{}, fmt.Errorf("examples: %w", err)
		}
		return VocabularyRow{
			ID:           e.ID,
			UserID:       userID,
			Kanji:        e.Kanji,
			Kana:         e.Kana,
			Meaning:      e.Meaning,
			Type:         e.Type,
			Conjugations: conj,
			Examples:     examples,
			AddedAt:      e.AddedAt,
			Memorized:    e.Memorized,
		}, nil
	},
	FromRow: func(r VocabularyRow) (model.VocabularyEntry, error) {
		e := model.VocabularyEntry{
			ID:        r.ID,
			Kanji:     r.Kanji,
			Kana:      r.Kana,
			Meaning:   r.Meaning,
			Type:      r.Type,
			AddedAt:   r.AddedAt,
			Memorized: r.Memorized,
			Examples:  []model.VocabularyExample{},
		}
		if err := decodeJSON(r.Conjugations, &e.Conjugations); err != nil {
			return e, fmt.Errorf("conjugations: %w", err)
		}
		if err := decodeJSON(r.Examples, &e.Examples); err != nil {
			return e, fmt.Errorf("examples: %w", err)
		}
		return e, nil
	},
}

var GrammarMapper = RowMapper[model.GrammarEntry, GrammarRow]{
	ToRow: func(userID string, e model.GrammarEntry) (GrammarRow, error) {
		examples, err := encodeJSON(e.Examples)
		if err != nil {
			return GrammarRow{}, fmt.Errorf("examples: %w", err)
		}
		items, err := encodeJSON(e.Items)
		if err != nil {
			return GrammarRow{}, fmt.Errorf("items: %w", err)
		}
		analysis := datatypes.JSON("null")
		if len(e.ComparisonAnalysis) > 0 {
			if !json.Valid(e.ComparisonAnalysis) {
				return GrammarRow{}, fmt.Errorf("comparison_analysis: %w", model.ErrInvalidInput)
			}
			analysis = datatypes.JSON(e.ComparisonAnalysis)
		}
		return GrammarRow{
			ID:                 e.ID,
			UserID:             userID,
			GrammarPoint:       e.GrammarPoint,
			Meaning:            e.Meaning,
			Explanation:        e.Explanation,
			Connection:         e.Connection,
			Examples:           examples,
			IsComparison:       e.IsComparison,
			ComparisonAnalysis: analysis,
			Items:              items,
			AddedAt:            e.AddedAt,
			Memorized:          e.Memorized,
		}, nil
	},
	FromRow: func(r GrammarRow) (model.GrammarEntry, error) {
		e := model.GrammarEntry{
			ID:           r.ID,
			GrammarPoint: r.GrammarPoint,
			Meaning:      r.Meaning,
			Explanation:  r.Explanation,
			Connection:   r.Connection,
			IsComparison: r.IsComparison,
			AddedAt:      r.AddedAt,
			Memorized:    r.Memorized,
			Examples:     []model.ExampleSentence{},
			Items:        []model.GrammarItem{},
		}
		if len(r.ComparisonAnalysis) > 0 && string(r.ComparisonAnalysis) != "null" {
			e.ComparisonAnalysis = json.RawMessage(r.ComparisonAnalysis)
		}
		if err := decodeJSON(r.Examples, &e.Examples); err != nil {
			return e, fmt.Errorf("examples: %w", err)
		}
		if err := decodeJSON(r.Items, &e.Items); err != nil {
			return e, fmt.Errorf("items: %w", err)
		}
		return e, nil
	},
}

var AdjectiveMapper = RowMapper[model.AdjectiveEntry, AdjectiveRow]{
	ToRow: func(userID string, e model.AdjectiveEntry) (AdjectiveRow, error) {
		conj, err := encodeJSON(e.Conjugations) // 副詞は null
		if err != nil {
			return AdjectiveRow{}, fmt.Errorf("conjugations: %w", err)
		}
		examples, err := encodeJSON(e.Examples)
		if err != nil {
			return AdjectiveRow{}, fmt.Errorf("examples: %w", err)
		}
		return AdjectiveRow{
			ID:           e.ID,
			UserID:       userID,
			Kanji:        e.Kanji,
			Kana:         e.Kana,
			Meaning:      e.Meaning,
			Type:         e.Type,
			Conjugations: conj,
			Examples:     examples,
			AddedAt:      e.AddedAt,
			Memorized:    e.Memorized,
		}, nil
	},
	FromRow: func(r AdjectiveRow) (model.AdjectiveEntry, error) {
		e := model.AdjectiveEntry{
			ID:        r.ID,
			Kanji:     r.Kanji,
			Kana:      r.Kana,
			Meaning:   r.Meaning,
			Type:      r.Type,
			AddedAt:   r.AddedAt,
			Memorized: r.Memorized,
			Examples:  []model.ExampleSentence{},
		}
		if err := decodeJSON(r.Conjugations, &e.Conjugations); err != nil {
			return e, fmt.Errorf("conjugations: %w", err)
		}
		if err := decodeJSON(r.Examples, &e.Examples); err != nil {
			return e, fmt.Errorf("examples: %w", err)
		}
		return e, nil
	},
}

var DialogueMapper = RowMapper[model.DialogueEntry, DialogueRow]{
	ToRow: func(userID string, e model.DialogueEntry) (DialogueRow, error) {
		lines, err := encodeJSON(e.DialogueData)
		if err != nil {
			return DialogueRow{}, fmt.Errorf("dialogue_data: %w", err)
		}
		return DialogueRow{
			ID:           e.ID,
			UserID:       userID,
			Scenario:     e.Scenario,
			Description:  e.Description,
			DialogueData: lines,
			AddedAt:      e.AddedAt,
			Memorized:    e.Memorized,
		}, nil
	},
	FromRow: func(r DialogueRow) (model.DialogueEntry, error) {
		e := model.DialogueEntry{
			ID:           r.ID,
			Scenario:     r.Scenario,
			Description:  r.Description,
			AddedAt:      r.AddedAt,
			Memorized:    r.Memorized,
			DialogueData: []model.DialogueLine{},
		}
		if err := decodeJSON(r.DialogueData, &e.DialogueData); err != nil {
			return e, fmt.Errorf("dialogue_data: %w", err)
		}
		return e, nil
	},
}

func encodeJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// decodeJSON は NULL / 空カラムを「値なし」として扱う
func decodeJSON(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
