package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"nihongo_memo/internal/model"
	"nihongo_memo/internal/repository"
	"nihongo_memo/internal/session"

	"github.com/sourcegraph/conc"
)

// Library は4つの学習コレクションをまとめて起動・停止します
type Library struct {
	Vocabulary *VocabularySynchronizer
	Grammar    *GrammarSynchronizer
	Adjectives *AdjectiveSynchronizer
	Dialogues  *DialogueSynchronizer
	logger     *slog.Logger
}

// NewLibrary はローカルストア・リモートクライアント・セッションを共有する4コレクションを作ります
func NewLibrary(local repository.SnapshotRepository, clients repository.ClientSource, sess session.Provider, logger *slog.Logger, opts ...Option) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]Option{WithLogger(logger)}, opts...)
	return &Library{
		Vocabulary: NewVocabularySynchronizer(local, repository.NewVocabularyRemoteStore(clients, sess), opts...),
		Grammar:    NewGrammarSynchronizer(local, repository.NewGrammarRemoteStore(clients, sess), opts...),
		Adjectives: NewAdjectiveSynchronizer(local, repository.NewAdjectiveRemoteStore(clients, sess), opts...),
		Dialogues:  NewDialogueSynchronizer(local, repository.NewDialogueRemoteStore(clients, sess), opts...),
		logger:     logger,
	}
}

// Start は各コレクションを読み込み、リモート取得を開始します。
// 返す Task はすべての取得が終わったときに完了します。
func (l *Library) Start(ctx context.Context) *Task {
	return l.join(
		l.Vocabulary.Start(ctx),
		l.Grammar.Start(ctx),
		l.Adjectives.Start(ctx),
		l.Dialogues.Start(ctx),
	)
}

// Refresh は全コレクションをリモートから取り直します (ログイン直後など)
func (l *Library) Refresh(ctx context.Context) *Task {
	return l.join(
		l.Vocabulary.Refresh(ctx),
		l.Grammar.Refresh(ctx),
		l.Adjectives.Refresh(ctx),
		l.Dialogues.Refresh(ctx),
	)
}

func (l *Library) join(tasks ...*Task) *Task {
	joined := newTask()
	go func() {
		var errs []error
		for _, t := range tasks {
			if err := t.Wait(context.Background()); err != nil {
				errs = append(errs, err)
			}
		}
		joined.finish(errors.Join(errs...))
	}()
	return joined
}

func (l *Library) Close() {
	l.Vocabulary.Close()
	l.Grammar.Close()
	l.Adjectives.Close()
	l.Dialogues.Close()
}

// Wait は全コレクションの実行中リモート処理を並行して待ちます
func (l *Library) Wait() {
	var wg conc.WaitGroup
	wg.Go(l.Vocabulary.Wait)
	wg.Go(l.Grammar.Wait)
	wg.Go(l.Adjectives.Wait)
	wg.Go(l.Dialogues.Wait)
	wg.Wait()
	l.logger.Info("All pending remote operations finished")
}

// DecodeInputs は生成AIの出力 (単一オブジェクトまたは配列) を入力DTOのスライスにします
func DecodeInputs[I any](raw []byte) ([]I, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", model.ErrInvalidInput)
	}
	if raw[0] == '[' {
		var ins []I
		if err := json.Unmarshal(raw, &ins); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		return ins, nil
	}
	var in I
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return []I{in}, nil
}

