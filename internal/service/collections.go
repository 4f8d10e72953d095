package service

import (
	"fmt"
	"log/slog"
	"time"

	"nihongo_memo/internal/config"
	"nihongo_memo/internal/model"
	"nihongo_memo/internal/repository"
	"nihongo_memo/internal/webutil"
)

type (
	VocabularySynchronizer = CollectionSynchronizer[model.VocabularyEntry, model.VocabularyInput]
	GrammarSynchronizer    = CollectionSynchronizer[model.GrammarEntry, model.GrammarInput]
	AdjectiveSynchronizer  = CollectionSynchronizer[model.AdjectiveEntry, model.AdjectiveInput]
	DialogueSynchronizer   = CollectionSynchronizer[model.DialogueEntry, model.DialogueInput]
)

// validateStruct は入力DTOの validate タグを検査します
func validateStruct[I any](in I) error {
	if err := webutil.Validator.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return nil
}

func NewVocabularySynchronizer(repo repository.SnapshotRepository, remote repository.RemoteStore[model.VocabularyEntry], opts ...Option) *VocabularySynchronizer {
	return NewCollectionSynchronizer(
		model.CollectionVocabulary, config.VocabularyStorageKey,
		NewLocalCache[model.VocabularyEntry](repo, loggerFrom(opts)),
		remote, validateStruct[model.VocabularyInput], BuildVocabulary, opts...,
	)
}

func NewGrammarSynchronizer(repo repository.SnapshotRepository, remote repository.RemoteStore[model.GrammarEntry], opts ...Option) *GrammarSynchronizer {
	return NewCollectionSynchronizer(
		model.CollectionGrammar, config.GrammarStorageKey,
		NewLocalCache[model.GrammarEntry](repo, loggerFrom(opts)),
		remote, validateStruct[model.GrammarInput], BuildGrammar, opts...,
	)
}

func NewAdjectiveSynchronizer(repo repository.SnapshotRepository, remote repository.RemoteStore[model.AdjectiveEntry], opts ...Option) *AdjectiveSynchronizer {
	return NewCollectionSynchronizer(
		model.CollectionAdjectives, config.AdjectiveStorageKey,
		NewLocalCache[model.AdjectiveEntry](repo, loggerFrom(opts)),
		remote, validateStruct[model.AdjectiveInput], BuildAdjective, opts...,
	)
}

func NewDialogueSynchronizer(repo repository.SnapshotRepository, remote repository.RemoteStore[model.DialogueEntry], opts ...Option) *DialogueSynchronizer {
	return NewCollectionSynchronizer(
		model.CollectionDialogues, config.DialogueStorageKey,
		NewLocalCache[model.DialogueEntry](repo, loggerFrom(opts)),
		remote, validateStruct[model.DialogueInput], BuildDialogue, opts...,
	)
}

func loggerFrom(opts []Option) *slog.Logger {
	o := syncOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o.logger
}

// --- 入力 -> レコード ---

func BuildVocabulary(in model.VocabularyInput, id string, addedAt time.Time) model.VocabularyEntry {
	examples := in.Examples
	if examples == nil {
		examples = []model.VocabularyExample{}
	}
	return model.VocabularyEntry{
		ID:           id,
		Kanji:        in.Kanji,
		Kana:         in.Kana,
		Meaning:      in.Meaning,
		Example:      in.Example,
		Type:         in.Type,
		Conjugations: in.Conjugations,
		Examples:     examples,
		AddedAt:      addedAt,
		Memorized:    false,
	}
}

func BuildGrammar(in model.GrammarInput, id string, addedAt time.Time) model.GrammarEntry {
	e := model.GrammarEntry{
		ID:           id,
		GrammarPoint: in.GrammarPoint,
		Meaning:      in.Meaning,
		Explanation:  in.Explanation,
		Connection:   in.Connection,
		Examples:     in.Examples,
		IsComparison: in.IsComparison,
		Items:        []model.GrammarItem{},
		AddedAt:      addedAt,
	}
	if e.Examples == nil {
		e.Examples = []model.ExampleSentence{}
	}
	// 比較用の項目・分析は比較エントリのときだけ保持する
	if in.IsComparison {
		e.ComparisonAnalysis = in.ComparisonAnalysis
		if in.Items != nil {
			e.Items = in.Items
		}
	}
	return e
}

func BuildAdjective(in model.AdjectiveInput, id string, addedAt time.Time) model.AdjectiveEntry {
	if in.ID != "" {
		id = in.ID
	}
	e := model.AdjectiveEntry{
		ID:           id,
		Kanji:        in.Kanji,
		Kana:         in.Kana,
		Meaning:      in.Meaning,
		Type:         in.Type,
		Conjugations: in.Conjugations,
		Examples:     in.Examples,
		AddedAt:      addedAt,
	}
	if e.Type == model.AdjectiveTypeAdverb {
		e.Conjugations = nil // 副詞は活用しない
	}
	if e.Examples == nil {
		e.Examples = []model.ExampleSentence{}
	}
	return e
}

func BuildDialogue(in model.DialogueInput, id string, addedAt time.Time) model.DialogueEntry {
	lines := in.Dialogues
	if lines == nil {
		lines = []model.DialogueLine{}
	}
	return model.DialogueEntry{
		ID:           id,
		Scenario:     in.Scenario,
		Description:  in.Description,
		DialogueData: lines,
		AddedAt:      addedAt,
	}
}
