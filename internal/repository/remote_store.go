//go:generate mockery --name RemoteStore --output ./mocks --outpkg mocks --case=underscore
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"nihongo_memo/internal/middleware"
	"nihongo_memo/internal/model"
	"nihongo_memo/internal/session"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteStore はコレクション1つ分のクラウド側テーブルへのアクセスです。
// 未設定・未ログインの場合、FetchAll は (nil, nil)、書き込みは何もせず nil を返します。
type RemoteStore[T any] interface {
	FetchAll(ctx context.Context) ([]T, error)
	Upsert(ctx context.Context, record T) error
	Delete(ctx context.Context, id string) error
}

// RowMapper はドメインのレコードとテーブル行を相互に変換します
type RowMapper[T any, R any] struct {
	ToRow   func(userID string, record T) (R, error)
	FromRow func(row R) (T, error)
}

// Row はリモートテーブルの行型が満たすべき制約
type Row interface {
	TableName() string
}

type gormRemoteStore[T model.Entry[T], R Row] struct {
	clients ClientSource
	session session.Provider
	mapper  RowMapper[T, R]
	table   string
}

func NewGormRemoteStore[T model.Entry[T], R Row](clients ClientSource, sess session.Provider, mapper RowMapper[T, R]) RemoteStore[T] {
	var zero R
	return &gormRemoteStore[T, R]{
		clients: clients,
		session: sess,
		mapper:  mapper,
		table:   zero.TableName(),
	}
}

func NewVocabularyRemoteStore(clients ClientSource, sess session.Provider) RemoteStore[model.VocabularyEntry] {
	return NewGormRemoteStore(clients, sess, VocabularyMapper)
}

func NewGrammarRemoteStore(clients ClientSource, sess session.Provider) RemoteStore[model.GrammarEntry] {
	return NewGormRemoteStore(clients, sess, GrammarMapper)
}

func NewAdjectiveRemoteStore(clients ClientSource, sess session.Provider) RemoteStore[model.AdjectiveEntry] {
	return NewGormRemoteStore(clients, sess, AdjectiveMapper)
}

func NewDialogueRemoteStore(clients ClientSource, sess session.Provider) RemoteStore[model.DialogueEntry] {
	return NewGormRemoteStore(clients, sess, DialogueMapper)
}

// target はクライアントと subject を揃えて返す。どちらかが無ければ db == nil
func (s *gormRemoteStore[T, R]) target(ctx context.Context) (*gorm.DB, string, error) {
	db, err := s.clients.Client(ctx)
	if err != nil || db == nil {
		return nil, "", err
	}
	subject, ok := s.session.Subject(ctx)
	if !ok {
		return nil, "", nil
	}
	return db, subject, nil
}

// FetchAll は現在のユーザーの行を added_at の新しい順で返します
func (s *gormRemoteStore[T, R]) FetchAll(ctx context.Context) ([]T, error) {
	logger := middleware.GetLogger(ctx)
	db, subject, err := s.target(ctx)
	if err != nil {
		return nil, fmt.Errorf("gormRemoteStore.FetchAll(%s): %w", s.table, err)
	}
	if db == nil {
		return nil, nil
	}

	var rows []R
	result := db.WithContext(ctx).
		Where("user_id = ?", subject).
		Order("added_at DESC").
		Find(&rows)
	if result.Error != nil {
		logger.Error("Error fetching rows from remote store",
			"error", result.Error,
			"table", s.table,
		)
		return nil, fmt.Errorf("gormRemoteStore.FetchAll(%s): %w: %w", s.table, model.ErrRemoteUnavailable, result.Error)
	}

	records := make([]T, 0, len(rows))
	for _, row := range rows {
		record, err := s.mapper.FromRow(row)
		if err != nil {
			// 壊れた行は読み飛ばす (1行のせいで全体を捨てない)
			logger.Warn("Skipping undecodable remote row",
				"error", err,
				"table", s.table,
			)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Upsert は id をキーに行全体を書き込みます。他ユーザーの行は上書きしません。
func (s *gormRemoteStore[T, R]) Upsert(ctx context.Context, record T) error {
	logger := middleware.GetLogger(ctx)
	db, subject, err := s.target(ctx)
	if err != nil {
		return fmt.Errorf("gormRemoteStore.Upsert(%s): %w", s.table, err)
	}
	if db == nil {
		return nil
	}

	row, err := s.mapper.ToRow(subject, record)
	if err != nil {
		return &model.RemoteWriteError{Op: "upsert", Table: s.table, Err: err}
	}

	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: s.table, Name: "user_id"}, Value: subject},
		}},
	}).Create(&row)
	if result.Error != nil {
		logger.Error("Error upserting row to remote store",
			"error", result.Error,
			"table", s.table,
			"id", record.EntryID(),
		)
		return s.classifyWriteError("upsert", result.Error)
	}
	if result.RowsAffected == 0 {
		// id が他ユーザーの行と衝突した
		return &model.RemoteWriteError{Op: "upsert", Table: s.table, Err: model.ErrForbidden}
	}
	return nil
}

// Delete は id と user_id の両方が一致する行を消します。存在しなくてもエラーにしない
func (s *gormRemoteStore[T, R]) Delete(ctx context.Context, id string) error {
	logger := middleware.GetLogger(ctx)
	db, subject, err := s.target(ctx)
	if err != nil {
		return fmt.Errorf("gormRemoteStore.Delete(%s): %w", s.table, err)
	}
	if db == nil {
		return nil
	}

	var zero R
	result := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, subject).
		Delete(&zero)
	if result.Error != nil {
		logger.Error("Error deleting row from remote store",
			"error", result.Error,
			"table", s.table,
			"id", id,
		)
		return s.classifyWriteError("delete", result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Debug("Remote delete matched no rows", slog.String("table", s.table), slog.String("id", id))
	}
	return nil
}

// classifyWriteError は接続系の失敗を ErrRemoteUnavailable に、それ以外を RemoteWriteError に振り分ける
func (s *gormRemoteStore[T, R]) classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &model.RemoteWriteError{Op: op, Table: s.table, Code: pgErr.Code, Err: err}
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("gormRemoteStore.%s(%s): %w: %w", op, s.table, model.ErrRemoteUnavailable, err)
	}
	return &model.RemoteWriteError{Op: op, Table: s.table, Err: err}
}
