package service

import (
	"context"
	"sync"
)

// Task はリモート処理1回分の結果を表す future です。
// 本番の呼び出し側は待たずに捨ててよく、テストでは Wait で完了を待ちます。
type Task struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// completedTask はリモート処理が不要だった場合の完了済み Task
func completedTask(err error) *Task {
	t := newTask()
	t.finish(err)
	return t
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done は処理完了時に close されるチャネルを返します
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait は完了するか ctx が終わるまで待ちます。
// 戻り値はリモート側のエラー (ログ済み)。ローカル状態には影響しません。
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err は完了済みならその結果を、未完了なら nil を返します
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
