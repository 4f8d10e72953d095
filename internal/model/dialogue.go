// internal/model/dialogue.go
package model

import "time"

// DialogueEntry は場面別会話スクリプト
type DialogueEntry struct {
	ID           string         `json:"id"`
	Scenario     string         `json:"scenario"`
	Description  string         `json:"description"`
	DialogueData []DialogueLine `json:"dialogueData"`
	AddedAt      time.Time      `json:"addedAt"`
	Memorized    bool           `json:"memorized"`
}

// DialogueLine は会話の1行 (話者 A/B)
type DialogueLine struct {
	Role string `json:"role"`
	JP   string `json:"jp"`
	Ruby string `json:"ruby,omitempty"`
	ZH   string `json:"zh"`
}

func (e DialogueEntry) EntryID() string   { return e.ID }
func (e DialogueEntry) IsMemorized() bool { return e.Memorized }

func (e DialogueEntry) WithMemorized(memorized bool) DialogueEntry {
	e.Memorized = memorized
	return e
}

// DialogueInput は生成AIが返す会話データ。行リストのキーは "dialogues"
type DialogueInput struct {
	Scenario    string         `json:"scenario" validate:"required"`
	Description string         `json:"description"`
	Dialogues   []DialogueLine `json:"dialogues"`
}
