package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nihongo_memo/internal/config"
	"nihongo_memo/internal/model"
	"nihongo_memo/internal/repository"
	"nihongo_memo/internal/repository/mocks"
	"nihongo_memo/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// --- テストヘルパー ---

// newTestLocalRepo は一時ディレクトリに SQLite のローカルキャッシュを作ります
func newTestLocalRepo(t *testing.T) repository.SnapshotRepository {
	t.Helper()
	db, err := repository.NewLocalDB(filepath.Join(t.TempDir(), "local.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewGormSnapshotRepository(db)
}

// stepClock は呼ばれるたびに1秒進む時計
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// seqIDs は "id-1", "id-2", ... を返す採番器
func seqIDs() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n), nil
	}
}

func testOptions() []Option {
	return []Option{WithLogger(testLogger), WithClock(newStepClock().Now), WithIDGenerator(seqIDs())}
}

// offlineRemote は未設定のリモート (FetchAll は nil、書き込みは何もしない)
func offlineRemote[T any](t *testing.T) *mocks.RemoteStore[T] {
	remote := mocks.NewRemoteStore[T](t)
	remote.On("FetchAll", mock.Anything).Return(nil, nil).Maybe()
	remote.On("Upsert", mock.Anything, mock.Anything).Return(nil).Maybe()
	remote.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()
	return remote
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "task did not finish")
	return err
}

// assertLocalMatchesMemory はローカルキャッシュの内容がメモリ上のスナップショットと一致するか検証します
func assertLocalMatchesMemory[T any](t *testing.T, repo repository.SnapshotRepository, key string, snapshot []T) {
	t.Helper()
	payload, err := repo.Get(context.Background(), key)
	require.NoError(t, err)
	want, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(payload))
}

func localRecords[T any](t *testing.T, repo repository.SnapshotRepository, key string) []T {
	t.Helper()
	payload, err := repo.Get(context.Background(), key)
	require.NoError(t, err)
	var records []T
	require.NoError(t, json.Unmarshal(payload, &records))
	return records
}

func ids[T model.Entry[T]](records []T) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.EntryID())
	}
	return out
}

func vocab(kanji string) model.VocabularyInput {
	return model.VocabularyInput{Kanji: kanji, Kana: kanji, Meaning: kanji}
}

// --- ローカル永続化 ---

func TestSynchronizer_LocalMatchesMemoryAfterEveryOperation(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	s := NewVocabularySynchronizer(repo, offlineRemote[model.VocabularyEntry](t), testOptions()...)
	require.NoError(t, waitTask(t, s.Start(ctx)))

	steps := []struct {
		name string
		run  func() *Task
	}{
		{"add", func() *Task { _, task, err := s.Add(ctx, vocab("食べる")); require.NoError(t, err); return task }},
		{"add batch", func() *Task {
			_, task, err := s.AddBatch(ctx, []model.VocabularyInput{vocab("飲む"), vocab("見る")})
			require.NoError(t, err)
			return task
		}},
		{"toggle", func() *Task { _, task, err := s.ToggleMemorized(ctx, "id-2"); require.NoError(t, err); return task }},
		{"delete", func() *Task { task, err := s.Delete(ctx, "id-1"); require.NoError(t, err); return task }},
		{"toggle back", func() *Task { _, task, err := s.ToggleMemorized(ctx, "id-2"); require.NoError(t, err); return task }},
	}
	for _, step := range steps {
		task := step.run()
		// リモートの完了を待たなくてもローカルは反映済み
		assertLocalMatchesMemory(t, repo, config.VocabularyStorageKey, s.Snapshot())
		require.NoError(t, waitTask(t, task), step.name)
	}
	assert.Equal(t, []string{"id-2", "id-3"}, ids(s.Snapshot()))
}

// --- 並び順 ---

func TestSynchronizer_NewestFirstOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewVocabularySynchronizer(newTestLocalRepo(t), offlineRemote[model.VocabularyEntry](t), testOptions()...)
	s.Start(ctx)

	a, _, err := s.Add(ctx, vocab("A"))
	require.NoError(t, err)
	b, _, err := s.Add(ctx, vocab("B"))
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids(s.Snapshot()))

	batch, _, err := s.AddBatch(ctx, []model.VocabularyInput{vocab("X"), vocab("Y")})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "X", batch[0].Kanji)
	assert.Equal(t, []string{batch[0].ID, batch[1].ID, b.ID, a.ID}, ids(s.Snapshot()))

	s.Wait()
}

// --- 同一 id の upsert で重複しない ---

func TestSynchronizer_ToggleTwiceKeepsSingleEntry(t *testing.T) {
	ctx := context.Background()
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("Upsert", mock.Anything, mock.MatchedBy(func(e model.VocabularyEntry) bool { return e.ID == "id-1" })).
		Return(nil).Times(3)

	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)

	_, task, err := s.Add(ctx, vocab("食べる"))
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	for i := 0; i < 2; i++ {
		_, task, err := s.ToggleMemorized(ctx, "id-1")
		require.NoError(t, err)
		require.NoError(t, waitTask(t, task))
	}

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "id-1", snapshot[0].ID)
	assert.False(t, snapshot[0].Memorized)
}

// --- オフライン動作 ---

func TestSynchronizer_OfflineMutationsUpdateLocalState(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	// 接続先未設定のファクトリ + 実際のリモートストア
	clients := repository.NewClientFactory(model.RemoteConfig{}, testLogger)
	remote := repository.NewVocabularyRemoteStore(clients, session.Static("user-1"))
	s := NewVocabularySynchronizer(repo, remote, testOptions()...)

	assert.Equal(t, model.StateHydrating, s.State())
	require.NoError(t, waitTask(t, s.Start(ctx)))
	assert.Equal(t, model.StateIdle, s.State())

	added, task, err := s.Add(ctx, vocab("書く"))
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	toggled, task, err := s.ToggleMemorized(ctx, added.ID)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.True(t, toggled.Memorized)
	assertLocalMatchesMemory(t, repo, config.VocabularyStorageKey, s.Snapshot())

	task, err = s.Delete(ctx, added.ID)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.Empty(t, s.Snapshot())
	assert.Empty(t, localRecords[model.VocabularyEntry](t, repo, config.VocabularyStorageKey))
}

// --- リモート失敗でもロールバックしない ---

func TestSynchronizer_RemoteFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("Upsert", mock.Anything, mock.Anything).
		Return(&model.RemoteWriteError{Op: "upsert", Table: "vocabulary", Code: "23505", Err: errors.New("duplicate key")})

	s := NewVocabularySynchronizer(repo, remote, testOptions()...)
	added, task, err := s.Add(ctx, vocab("走る"))
	require.NoError(t, err, "remote failure must not surface from Add")

	err = waitTask(t, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRemoteWrite)

	got, ok := s.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, "走る", got.Kanji)
	assert.Equal(t, []string{added.ID}, ids(localRecords[model.VocabularyEntry](t, repo, config.VocabularyStorageKey)))
}

func TestSynchronizer_BatchContinuesPastRemoteFailures(t *testing.T) {
	ctx := context.Background()
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("Upsert", mock.Anything, mock.MatchedBy(func(e model.VocabularyEntry) bool { return e.ID == "id-1" })).
		Return(fmt.Errorf("wrapped: %w", model.ErrRemoteUnavailable)).Once()
	remote.On("Upsert", mock.Anything, mock.MatchedBy(func(e model.VocabularyEntry) bool { return e.ID == "id-2" })).
		Return(nil).Once()

	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)
	created, task, err := s.AddBatch(ctx, []model.VocabularyInput{vocab("一"), vocab("二")})
	require.NoError(t, err)
	require.Len(t, created, 2)

	err = waitTask(t, task)
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	remote.AssertNumberOfCalls(t, "Upsert", 2)
	assert.Len(t, s.Snapshot(), 2)
}

// --- リモートが正 ---

func TestSynchronizer_RemoteSnapshotReplacesLocal(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	NewLocalCache[model.VocabularyEntry](repo, testLogger).
		Save(ctx, config.VocabularyStorageKey, []model.VocabularyEntry{{ID: "1", Kanji: "古い"}})

	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("FetchAll", mock.Anything).Return([]model.VocabularyEntry{{ID: "2", Kanji: "新しい"}}, nil).Once()

	s := NewVocabularySynchronizer(repo, remote, testOptions()...)
	task := s.Start(ctx)
	require.NoError(t, waitTask(t, task))

	assert.Equal(t, []string{"2"}, ids(s.Snapshot()))
	assert.Equal(t, []string{"2"}, ids(localRecords[model.VocabularyEntry](t, repo, config.VocabularyStorageKey)))
	assert.Equal(t, model.StateIdle, s.State())
}

func TestSynchronizer_FetchErrorKeepsLocalSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	NewLocalCache[model.VocabularyEntry](repo, testLogger).
		Save(ctx, config.VocabularyStorageKey, []model.VocabularyEntry{{ID: "1", Kanji: "残る"}})

	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("FetchAll", mock.Anything).Return(nil, model.ErrRemoteUnavailable).Once()

	s := NewVocabularySynchronizer(repo, remote, testOptions()...)
	err := waitTask(t, s.Start(ctx))
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	assert.Equal(t, []string{"1"}, ids(s.Snapshot()))
}

func TestSynchronizer_CloseDiscardsInFlightFetch(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("FetchAll", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return([]model.VocabularyEntry{{ID: "remote"}}, nil).Once()

	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)
	task := s.Start(ctx)
	assert.Equal(t, model.StateSyncing, s.State())

	s.Close()
	close(release)
	require.NoError(t, waitTask(t, task))
	assert.Empty(t, s.Snapshot())

	_, _, err := s.Add(ctx, vocab("後"))
	assert.ErrorIs(t, err, ErrClosed)
	s.Wait()
}

func TestSynchronizer_StaleFetchIsDiscarded(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("FetchAll", mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]model.VocabularyEntry{{ID: "old"}}, nil).Once()
	remote.On("FetchAll", mock.Anything).
		Return([]model.VocabularyEntry{{ID: "new"}}, nil).Once()

	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)
	first := s.Start(ctx)
	<-entered

	// 後から始めた取得が先に終わる
	require.NoError(t, waitTask(t, s.Refresh(ctx)))
	assert.Equal(t, []string{"new"}, ids(s.Snapshot()))

	close(release)
	require.NoError(t, waitTask(t, first))
	assert.Equal(t, []string{"new"}, ids(s.Snapshot()))
	assert.Equal(t, model.StateIdle, s.State())
}

func TestSynchronizer_MutationBeforeStartHydratesFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	NewLocalCache[model.VocabularyEntry](repo, testLogger).
		Save(ctx, config.VocabularyStorageKey, []model.VocabularyEntry{{ID: "saved", Kanji: "前"}})

	s := NewVocabularySynchronizer(repo, offlineRemote[model.VocabularyEntry](t), testOptions()...)
	assert.Equal(t, model.StateHydrating, s.State())

	_, task, err := s.Add(ctx, vocab("後"))
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	assert.Equal(t, []string{"id-1", "saved"}, ids(s.Snapshot()))
	assert.Equal(t, model.StateIdle, s.State())
	assertLocalMatchesMemory(t, repo, config.VocabularyStorageKey, s.Snapshot())
}

// --- エラー系 ---

func TestSynchronizer_UnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)

	_, err := s.Delete(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, _, err = s.ToggleMemorized(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	remote.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	remote.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSynchronizer_InvalidInputRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	s := NewVocabularySynchronizer(repo, mocks.NewRemoteStore[model.VocabularyEntry](t), testOptions()...)

	_, _, err := s.AddBatch(ctx, []model.VocabularyInput{vocab("良い"), {Kana: "なし"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, s.Snapshot())

	_, err = repo.Get(ctx, config.VocabularyStorageKey)
	assert.ErrorIs(t, err, model.ErrNotFound, "nothing should have been saved")
}

func TestSynchronizer_CorruptLocalSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	require.NoError(t, repo.Put(ctx, config.VocabularyStorageKey, []byte("{not json")))

	s := NewVocabularySynchronizer(repo, offlineRemote[model.VocabularyEntry](t), testOptions()...)
	require.NoError(t, waitTask(t, s.Start(ctx)))
	assert.Empty(t, s.Snapshot())

	_, task, err := s.Add(ctx, vocab("直る"))
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.Len(t, localRecords[model.VocabularyEntry](t, repo, config.VocabularyStorageKey), 1)
}

// --- シナリオ ---

func TestScenario_VocabularyLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	s := NewVocabularySynchronizer(repo, offlineRemote[model.VocabularyEntry](t),
		WithLogger(testLogger)) // 本番と同じ UUIDv7 採番
	s.Start(ctx)

	added, _, err := s.Add(ctx, model.VocabularyInput{Kanji: "食べる", Kana: "たべる", Meaning: "吃"})
	require.NoError(t, err)
	require.Len(t, s.Snapshot(), 1)
	assert.NotEmpty(t, added.ID)
	assert.False(t, added.Memorized)

	toggled, _, err := s.ToggleMemorized(ctx, added.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Memorized)
	assert.Equal(t, added.ID, toggled.ID)
	assert.Equal(t, "食べる", toggled.Kanji)

	_, err = s.Delete(ctx, added.ID)
	require.NoError(t, err)
	assert.Empty(t, s.Snapshot())
	assert.Empty(t, localRecords[model.VocabularyEntry](t, repo, config.VocabularyStorageKey))

	s.Wait()
}

func TestScenario_AdjectiveBatchWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	repo := newTestLocalRepo(t)
	clients := repository.NewClientFactory(model.RemoteConfig{}, testLogger)
	s := NewAdjectiveSynchronizer(repo,
		repository.NewAdjectiveRemoteStore(clients, session.Static("")), testOptions()...)
	s.Start(ctx)

	inputs := []model.AdjectiveInput{
		{Kanji: "高い", Kana: "たかい", Type: model.AdjectiveTypeI},
		{Kanji: "静か", Kana: "しずか", Type: model.AdjectiveTypeNa},
		{Kanji: "とても", Kana: "とても", Type: model.AdjectiveTypeAdverb,
			Conjugations: map[string]model.Conjugation{"negative": {Form: "x"}}},
	}
	created, task, err := s.AddBatch(ctx, inputs)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 3)
	for i, in := range inputs {
		assert.Equal(t, in.Kanji, snapshot[i].Kanji)
	}
	assert.Nil(t, created[2].Conjugations, "adverbs carry no conjugations")
	assert.Len(t, localRecords[model.AdjectiveEntry](t, repo, config.AdjectiveStorageKey), 3)
}

// --- Builder ---

func TestBuildGrammar_ComparisonItemsOnlyForComparison(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in := model.GrammarInput{
		GrammarPoint:       "〜ばかり vs 〜だけ",
		Items:              []model.GrammarItem{{GrammarPoint: "〜ばかり"}},
		ComparisonAnalysis: json.RawMessage(`"analysis"`),
	}

	plain := BuildGrammar(in, "g1", at)
	assert.Empty(t, plain.Items)
	assert.Nil(t, plain.ComparisonAnalysis)
	assert.NotNil(t, plain.Examples)

	in.IsComparison = true
	cmp := BuildGrammar(in, "g2", at)
	assert.Len(t, cmp.Items, 1)
	assert.JSONEq(t, `"analysis"`, string(cmp.ComparisonAnalysis))
}

func TestBuildAdjective_KeepsSuppliedID(t *testing.T) {
	e := BuildAdjective(model.AdjectiveInput{ID: "given", Kanji: "赤い"}, "generated", time.Now())
	assert.Equal(t, "given", e.ID)
}

func TestDecodeInputs(t *testing.T) {
	one, err := DecodeInputs[model.DialogueInput]([]byte(` {"scenario":"駅で","dialogues":[{"role":"A","jp":"すみません","zh":"不好意思"}]}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "駅で", one[0].Scenario)
	assert.Len(t, one[0].Dialogues, 1)

	many, err := DecodeInputs[model.VocabularyInput]([]byte(`[{"kanji":"一"},{"kanji":"二"}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = DecodeInputs[model.VocabularyInput]([]byte("   "))
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = DecodeInputs[model.VocabularyInput]([]byte(`[{"kanji":`))
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

// --- id の採番と重複 ---

func TestSynchronizer_DefaultIDsAreDistinctWithinOneTick(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	s := NewVocabularySynchronizer(newTestLocalRepo(t), offlineRemote[model.VocabularyEntry](t),
		WithLogger(testLogger), WithClock(func() time.Time { return frozen }))

	const n = 1000
	ins := make([]model.VocabularyInput, n)
	for i := range ins {
		ins[i] = vocab(fmt.Sprintf("語%d", i))
	}

	created, task, err := s.AddBatch(ctx, ins)
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	require.Len(t, created, n)

	seen := make(map[string]struct{}, n)
	snapshot := s.Snapshot()
	require.Len(t, snapshot, n)
	for i, rec := range snapshot {
		assert.Equal(t, fmt.Sprintf("語%d", i), rec.Kanji, "input order is kept")
		assert.True(t, frozen.Equal(rec.AddedAt))
		seen[rec.ID] = struct{}{}
	}
	assert.Len(t, seen, n, "every record gets its own id")
}

func TestSynchronizer_SuppliedAdjectiveIDs(t *testing.T) {
	tests := []struct {
		name      string
		batches   [][]model.AdjectiveInput
		wantIDs   []string
		wantKanji []string
	}{
		{
			name: "同じバッチ内の重複は最初のレコードを残す",
			batches: [][]model.AdjectiveInput{
				{{ID: "adj-x", Kanji: "一", Type: model.AdjectiveTypeI}, {ID: "adj-x", Kanji: "二", Type: model.AdjectiveTypeI}},
			},
			wantIDs:   []string{"adj-x"},
			wantKanji: []string{"一"},
		},
		{
			name: "既存と同じ id は置き換えて先頭へ移す",
			batches: [][]model.AdjectiveInput{
				{{ID: "adj-a", Kanji: "高い", Type: model.AdjectiveTypeI}},
				{{Kanji: "静か", Type: model.AdjectiveTypeNa}},
				{{ID: "adj-a", Kanji: "高い(改)", Type: model.AdjectiveTypeI}},
			},
			wantIDs:   []string{"adj-a", "id-2"},
			wantKanji: []string{"高い(改)", "静か"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestLocalRepo(t)
			s := NewAdjectiveSynchronizer(repo, offlineRemote[model.AdjectiveEntry](t), testOptions()...)

			for _, batch := range tt.batches {
				_, task, err := s.AddBatch(ctx, batch)
				require.NoError(t, err)
				require.NoError(t, waitTask(t, task))
			}

			snapshot := s.Snapshot()
			assert.Equal(t, tt.wantIDs, ids(snapshot))
			kanji := make([]string, 0, len(snapshot))
			for _, rec := range snapshot {
				kanji = append(kanji, rec.Kanji)
			}
			assert.Equal(t, tt.wantKanji, kanji)
			assertLocalMatchesMemory(t, repo, config.AdjectiveStorageKey, snapshot)
		})
	}
}

// --- 異常終了・停止処理 ---

func TestSynchronizer_FetchPanicReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("FetchAll", mock.Anything).Run(func(mock.Arguments) { panic("driver exploded") }).Once()

	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)
	err := waitTask(t, s.Start(ctx))
	assert.ErrorIs(t, err, model.ErrInternalServer)
	assert.Equal(t, model.StateIdle, s.State())
	s.Wait()
}

func TestSynchronizer_WaitAfterCloseCoversAcceptedWrites(t *testing.T) {
	ctx := context.Background()
	var waited atomic.Bool
	var late atomic.Int32
	remote := mocks.NewRemoteStore[model.VocabularyEntry](t)
	remote.On("FetchAll", mock.Anything).Return(nil, nil).Maybe()
	remote.On("Upsert", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			time.Sleep(time.Millisecond)
			if waited.Load() {
				late.Add(1)
			}
		}).
		Return(nil).Maybe()

	s := NewVocabularySynchronizer(newTestLocalRepo(t), remote, testOptions()...)
	require.NoError(t, waitTask(t, s.Start(ctx)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Add(ctx, vocab(fmt.Sprintf("語%d", i)))
			if err != nil {
				assert.ErrorIs(t, err, ErrClosed)
			}
		}(i)
	}
	s.Close()
	s.Wait()
	waited.Store(true)
	wg.Wait()

	// Close 前に受け付けた書き込みはすべて Wait の中で終わっている
	assert.Zero(t, late.Load())
}
