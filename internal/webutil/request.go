package webutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"nihongo_memo/internal/model"
)

// MaxBodyBytes はリクエストボディの上限 (会話スクリプトのまとめ追加を想定)
const MaxBodyBytes = 1 << 20

// DecodeJSONBody はリクエストボディを dst にデコードします。未知のフィールドはエラー
func DecodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return model.ErrInvalidInput
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return nil
}

// ReadBody は生のボディを読みます (単一オブジェクト/配列の両方を受けるエンドポイント用)
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, model.ErrInvalidInput
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return body, nil
}
