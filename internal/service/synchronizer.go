package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"nihongo_memo/internal/model"
	"nihongo_memo/internal/repository"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
)

// ErrClosed は Close 後に変更操作を呼んだ場合のエラー
var ErrClosed = errors.New("synchronizer closed")

// Collection はハンドラから見たコレクション操作です
type Collection[T any, I any] interface {
	Name() string
	Snapshot() []T
	Get(id string) (T, bool)
	State() model.SyncState
	Add(ctx context.Context, in I) (T, *Task, error)
	AddBatch(ctx context.Context, ins []I) ([]T, *Task, error)
	Delete(ctx context.Context, id string) (*Task, error)
	ToggleMemorized(ctx context.Context, id string) (T, *Task, error)
	Refresh(ctx context.Context) *Task
}

// Builder は検証済みの入力と採番済みの id / 追加日時からレコードを組み立てます
type Builder[T any, I any] func(in I, id string, addedAt time.Time) T

type syncOptions struct {
	newID  func() (string, error)
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*syncOptions)

// WithIDGenerator は id の採番を差し替えます (デフォルトは UUIDv7)
func WithIDGenerator(fn func() (string, error)) Option {
	return func(o *syncOptions) { o.newID = fn }
}

// WithClock は追加日時の時計を差し替えます
func WithClock(fn func() time.Time) Option {
	return func(o *syncOptions) { o.now = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *syncOptions) { o.logger = logger }
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CollectionSynchronizer はメモリ上のコレクションをローカルキャッシュとリモートストアに
// 同期させます。メモリとローカルへの反映は呼び出し中に完了し、リモートへの反映は
// 非同期に行います。リモートの失敗はロールバックせずログに残すだけです。
type CollectionSynchronizer[T model.Entry[T], I any] struct {
	name     string
	key      string
	cache    *LocalCache[T]
	remote   repository.RemoteStore[T]
	validate func(I) error
	build    Builder[T, I]
	newID    func() (string, error)
	now      func() time.Time
	logger   *slog.Logger

	mu         sync.Mutex
	records    []T
	hydrated   bool
	closed     bool
	fetching   int
	fetchSeq   uint64
	appliedSeq uint64

	wg conc.WaitGroup
}

var _ Collection[model.VocabularyEntry, model.VocabularyInput] = (*CollectionSynchronizer[model.VocabularyEntry, model.VocabularyInput])(nil)

func NewCollectionSynchronizer[T model.Entry[T], I any](
	name, key string,
	cache *LocalCache[T],
	remote repository.RemoteStore[T],
	validate func(I) error,
	build Builder[T, I],
	opts ...Option,
) *CollectionSynchronizer[T, I] {
	o := syncOptions{
		newID:  newUUIDv7,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &CollectionSynchronizer[T, I]{
		name:     name,
		key:      key,
		cache:    cache,
		remote:   remote,
		validate: validate,
		build:    build,
		newID:    o.newID,
		now:      o.now,
		logger:   o.logger.With(slog.String("collection", name)),
		records:  []T{},
	}
}

func (s *CollectionSynchronizer[T, I]) Name() string {
	return s.name
}

// Start はローカルキャッシュから同期的に読み込み、その後リモートの取得を非同期で始めます。
// 戻り値の Task はリモート取得の完了を表します。
func (s *CollectionSynchronizer[T, I]) Start(ctx context.Context) *Task {
	s.mu.Lock()
	s.hydrateLocked(ctx)
	s.mu.Unlock()
	return s.fetch(ctx)
}

// Refresh はリモートから取り直します。結果が得られた場合のみメモリとローカルを置き換えます
func (s *CollectionSynchronizer[T, I]) Refresh(ctx context.Context) *Task {
	return s.fetch(ctx)
}

func (s *CollectionSynchronizer[T, I]) hydrateLocked(ctx context.Context) {
	if s.hydrated {
		return
	}
	s.records = s.cache.Load(ctx, s.key)
	s.hydrated = true
	s.logger.DebugContext(ctx, "Hydrated from local cache", slog.Int("records", len(s.records)))
}

func (s *CollectionSynchronizer[T, I]) fetch(ctx context.Context) *Task {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return completedTask(ErrClosed)
	}
	s.fetchSeq++
	seq := s.fetchSeq
	s.fetching++
	defer s.mu.Unlock()

	return s.spawnLocked(ctx, "fetch", func(ctx context.Context) error {
		settled := false
		defer func() {
			// FetchAll が panic した場合も Syncing のままにしない
			if !settled {
				s.mu.Lock()
				s.fetching--
				s.mu.Unlock()
			}
		}()

		records, err := s.remote.FetchAll(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.fetching--
		settled = true

		if err != nil {
			return err
		}
		// 未設定・未ログイン、または所有者が居なくなった後の結果は捨てる
		if records == nil || s.closed {
			return nil
		}
		// 後から始めた取得の結果がすでに反映されている
		if seq < s.appliedSeq {
			return nil
		}
		s.appliedSeq = seq
		s.hydrated = true
		s.records = slices.Clone(records)
		s.cache.Save(ctx, s.key, s.records)
		s.logger.InfoContext(ctx, "Replaced collection with remote snapshot", slog.Int("records", len(records)))
		return nil
	})
}

// Add はレコードを1件追加します。AddBatch に1件渡した場合と同じです
func (s *CollectionSynchronizer[T, I]) Add(ctx context.Context, in I) (T, *Task, error) {
	created, task, err := s.AddBatch(ctx, []I{in})
	if err != nil {
		var zero T
		return zero, task, err
	}
	return created[0], task, nil
}

// AddBatch はすべての入力を検証・構築してから、入力順のまま1つのブロックとして
// 既存レコードの先頭に追加します。リモートへは1件ずつ順に upsert し、失敗しても続行します。
func (s *CollectionSynchronizer[T, I]) AddBatch(ctx context.Context, ins []I) ([]T, *Task, error) {
	if len(ins) == 0 {
		return []T{}, completedTask(nil), nil
	}

	addedAt := s.now()
	created := make([]T, 0, len(ins))
	seen := make(map[string]struct{}, len(ins))
	for i, in := range ins {
		if err := s.validate(in); err != nil {
			return nil, completedTask(nil), fmt.Errorf("%s: item %d: %w", s.name, i, err)
		}
		id, err := s.newID()
		if err != nil {
			return nil, completedTask(nil), fmt.Errorf("%s: generate id: %w", s.name, err)
		}
		record := s.build(in, id, addedAt)
		if _, dup := seen[record.EntryID()]; dup {
			continue
		}
		seen[record.EntryID()] = struct{}{}
		created = append(created, record)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, completedTask(ErrClosed), ErrClosed
	}
	s.hydrateLocked(ctx)
	// 入力側で id を持っている場合に備えて同じ id の古いレコードを除く
	rest := slices.DeleteFunc(slices.Clone(s.records), func(r T) bool {
		_, dup := seen[r.EntryID()]
		return dup
	})
	s.records = append(slices.Clone(created), rest...)
	s.cache.Save(ctx, s.key, s.records)
	task := s.spawnLocked(ctx, "upsert", func(ctx context.Context) error {
		var errs []error
		for _, record := range created {
			if err := s.remote.Upsert(ctx, record); err != nil {
				errs = append(errs, fmt.Errorf("upsert %s: %w", record.EntryID(), err))
			}
		}
		return errors.Join(errs...)
	})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Records added", slog.Int("count", len(created)))
	return slices.Clone(created), task, nil
}

// Delete は id のレコードを取り除きます。存在しない id は model.ErrNotFound
func (s *CollectionSynchronizer[T, I]) Delete(ctx context.Context, id string) (*Task, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return completedTask(ErrClosed), ErrClosed
	}
	s.hydrateLocked(ctx)
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return completedTask(nil), fmt.Errorf("%s: delete %s: %w", s.name, id, model.ErrNotFound)
	}
	s.records = slices.Delete(slices.Clone(s.records), idx, idx+1)
	s.cache.Save(ctx, s.key, s.records)
	task := s.spawnLocked(ctx, "delete", func(ctx context.Context) error {
		return s.remote.Delete(ctx, id)
	})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Record deleted", slog.String("id", id))
	return task, nil
}

// ToggleMemorized は覚えたフラグを反転し、更新後のレコードを返します
func (s *CollectionSynchronizer[T, I]) ToggleMemorized(ctx context.Context, id string) (T, *Task, error) {
	var zero T
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, completedTask(ErrClosed), ErrClosed
	}
	s.hydrateLocked(ctx)
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, completedTask(nil), fmt.Errorf("%s: toggle %s: %w", s.name, id, model.ErrNotFound)
	}
	updated := s.records[idx].WithMemorized(!s.records[idx].IsMemorized())
	s.records = slices.Clone(s.records)
	s.records[idx] = updated
	s.cache.Save(ctx, s.key, s.records)
	task := s.spawnLocked(ctx, "upsert", func(ctx context.Context) error {
		return s.remote.Upsert(ctx, updated)
	})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Memorized flag toggled",
		slog.String("id", id), slog.Bool("memorized", updated.IsMemorized()))
	return updated, task, nil
}

// Snapshot は現在のレコード列のコピーを返します (新しい順)
func (s *CollectionSynchronizer[T, I]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

func (s *CollectionSynchronizer[T, I]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.records[idx], true
	}
	var zero T
	return zero, false
}

func (s *CollectionSynchronizer[T, I]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *CollectionSynchronizer[T, I]) State() model.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.hydrated:
		return model.StateHydrating
	case s.fetching > 0:
		return model.StateSyncing
	default:
		return model.StateIdle
	}
}

// Close 以降、取得結果は反映されず変更操作は ErrClosed になります。
// 実行中のリモート書き込みはそのまま完了させます。
func (s *CollectionSynchronizer[T, I]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Wait は実行中のリモート処理がすべて終わるまで待ちます
func (s *CollectionSynchronizer[T, I]) Wait() {
	if r := s.wg.WaitAndRecover(); r != nil {
		s.logger.Error("Remote task panicked", slog.String("panic", r.String()))
	}
}

func (s *CollectionSynchronizer[T, I]) indexLocked(id string) int {
	return slices.IndexFunc(s.records, func(r T) bool { return r.EntryID() == id })
}

// spawnLocked はリモート処理をゴルーチンで実行します。呼び出し元のキャンセルは引き継がない。
// s.mu を保持したまま呼ぶこと (Close 後の Wait が登録済みの処理を必ず待てるように)
func (s *CollectionSynchronizer[T, I]) spawnLocked(ctx context.Context, op string, fn func(ctx context.Context) error) *Task {
	task := newTask()
	rctx := context.WithoutCancel(ctx)
	s.wg.Go(func() {
		err := fmt.Errorf("remote %s: %w", op, model.ErrInternalServer) // panic 時の結果
		defer func() { task.finish(err) }()

		err = fn(rctx)
		if err != nil {
			s.logger.WarnContext(rctx, "Remote operation failed, local state kept",
				slog.String("op", op), slog.Any("error", err))
		}
	})
	return task
}
