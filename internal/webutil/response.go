// internal/webutil/response.go
package webutil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"nihongo_memo/internal/model"

	"github.com/go-playground/validator/v10"
)

// HandleError はエラーを解釈し、適切なJSONエラーレスポンスを返します。
// これがアプリケーションのエラーハンドリングの中心となります。
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode := MapErrorToStatusCode(err)

	var errResp model.APIErrorResponse
	var appErr *model.AppError
	var validationErrors validator.ValidationErrors

	switch {
	case errors.As(err, &appErr):
		errResp = model.APIErrorResponse{Error: appErr.Detail}
	case errors.As(err, &validationErrors):
		// 最初のエラーを代表として日本語で返す
		first := validationErrors[0]
		errResp = model.APIErrorResponse{Error: model.ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: first.Translate(Trans),
			Field:   first.Field(),
		}}
	case statusCode == http.StatusNotFound:
		errResp = model.APIErrorResponse{Error: model.ErrorDetail{Code: "NOT_FOUND", Message: "指定されたデータが見つかりません。"}}
	case statusCode == http.StatusBadRequest:
		errResp = model.APIErrorResponse{Error: model.ErrorDetail{Code: "INVALID_INPUT", Message: "リクエストの内容が正しくありません。"}}
	case statusCode == http.StatusServiceUnavailable:
		errResp = model.APIErrorResponse{Error: model.ErrorDetail{Code: "REMOTE_UNAVAILABLE", Message: "クラウドに接続できません。"}}
	default:
		// ログには詳細なエラーを出力
		logger.Error("Unhandled error", slog.Any("error", err))

		// クライアントには汎用的なエラーメッセージを返す
		errResp = model.APIErrorResponse{
			Error: model.ErrorDetail{
				Code:    "INTERNAL_SERVER_ERROR",
				Message: "サーバー内部でエラーが発生しました。",
			},
		}
	}

	RespondWithJSON(w, statusCode, errResp, logger)
}

// MapErrorToStatusCode はアプリケーションエラーをHTTPステータスコードにマッピングします
func MapErrorToStatusCode(err error) int {
	var appErr *model.AppError
	// AppErrorの場合は、ラップされたエラーで判定する
	if errors.As(err, &appErr) {
		err = appErr.Unwrap()
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrRemoteWrite):
		return http.StatusBadGateway
	default:
		// ハンドリングされていないエラーは内部サーバーエラーとして扱う
		return http.StatusInternalServerError
	}
}

// RespondWithJSON はJSONレスポンスを返します
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}, logger *slog.Logger) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error marshaling JSON response", slog.Any("error", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"INTERNAL_SERVER_ERROR", "message":"レスポンス生成中にエラーが発生しました。"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
