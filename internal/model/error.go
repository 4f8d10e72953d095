// internal/model/error.go
package model

import (
	"errors"
	"fmt"
)

// アプリケーション固有のエラー
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
	ErrForbidden      = errors.New("forbidden")

	// リモート(クラウド)側のエラー。同期層はこれらを握りつぶしてログに残すだけ
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrRemoteWrite       = errors.New("remote store rejected write")
)

// RemoteWriteError はバックエンドが書き込みを拒否した場合のエラー (制約違反など)
type RemoteWriteError struct {
	Op    string // "upsert" / "delete"
	Table string
	Code  string // PostgreSQL の SQLSTATE (取れた場合のみ)
	Err   error
}

func (e *RemoteWriteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote %s on %s rejected (sqlstate %s): %v", e.Op, e.Table, e.Code, e.Err)
	}
	return fmt.Sprintf("remote %s on %s rejected: %v", e.Op, e.Table, e.Err)
}

// Unwrap は errors.Is(err, ErrRemoteWrite) と元エラーの両方で判定できるようにする
func (e *RemoteWriteError) Unwrap() []error {
	return []error{ErrRemoteWrite, e.Err}
}

// AppError はAPIレスポンスに載せるエラー情報を保持します
type AppError struct {
	Detail ErrorDetail
	Err    error
}

func NewAppError(code, message, field string, err error) *AppError {
	return &AppError{
		Detail: ErrorDetail{Code: code, Message: message, Field: field},
		Err:    err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Detail.Code, e.Detail.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Detail.Code, e.Detail.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrorDetail はクライアントに返すエラーの中身
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// APIErrorResponse はAPIエラーレスポンスの構造体
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
