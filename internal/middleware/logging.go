package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nihongo_memo/internal/model"
)

// logCtxKey はコンテキストにロガーを格納するためのキーです。
type logCtxKey struct{}

// sensitiveHeaders はログ出力時に値をマスキングするヘッダー名 (小文字)
var sensitiveHeaders = map[string]bool{
	"authorization":  true, // セッションのアクセストークン
	"cookie":         true,
	"set-cookie":     true,
	"x-api-key":      true,
	"x-goog-api-key": true, // 生成AIのAPIキー
}

// sensitiveFields は設定・セッションAPIのボディに含まれる秘密の値
var sensitiveFields = map[string]bool{
	"api_key":      true,
	"remote_key":   true,
	"access_token": true,
}

var collections = map[string]bool{
	model.CollectionVocabulary: true,
	model.CollectionGrammar:    true,
	model.CollectionAdjectives: true,
	model.CollectionDialogues:  true,
}

// statusRecorder はステータスコードとレスポンスボディを記録します
type statusRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.body.Write(b)
	return sr.ResponseWriter.Write(b)
}

// LoggingMiddleware はリクエストごとのロガーをコンテキストに入れ、開始・完了を記録します。
// コレクションAPIへのリクエストには collection 属性が付き、リモート同期のログにも引き継がれます。
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			attrs := []any{slog.String("req_id", middleware.GetReqID(r.Context()))}
			if c := collectionFromPath(r.URL.Path); c != "" {
				attrs = append(attrs, slog.String("collection", c))
			}
			requestLogger := logger.With(attrs...)
			r = r.WithContext(WithLogger(r.Context(), requestLogger))

			requestLogger.Info("Request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			debug := logger.Enabled(r.Context(), slog.LevelDebug)
			var reqBody []byte
			if debug && r.Body != nil {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}

			// ルーティング後でないとパターンは確定しない
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}

			requestLogger.Log(r.Context(), level, "Request completed",
				"status", rec.status,
				"route", route,
				"latency_ms", float64(time.Since(startTime).Nanoseconds())/1e6,
				"bytes_out", rec.body.Len(),
			)

			if debug {
				requestLogger.Debug("Request detail",
					"headers", formatHeaders(r.Header),
					"body", redactBody(reqBody),
				)
				requestLogger.Debug("Response detail",
					"status", rec.status,
					"headers", formatHeaders(rec.Header()),
					"body", redactBody(rec.body.Bytes()),
				)
			}
		})
	}
}

// WithLogger はロガーをコンテキストに格納します (HTTP 以外の起点用)。
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, logCtxKey{}, logger)
}

// GetLogger はコンテキストから slog.Logger を取得します。
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(logCtxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// collectionFromPath は /api/v1/{collection}/... からコレクション名を取り出します
func collectionFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	if collections[name] {
		return name
	}
	return ""
}

// formatHeaders はヘッダー情報をログ出力用に整形・マスキングします
func formatHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			result[key] = "[SENSITIVE]"
			continue
		}
		result[key] = strings.Join(values, ", ")
	}
	return result
}

// redactBody はJSONオブジェクトの秘密のフィールドを伏せます。JSONオブジェクト以外はそのまま返す
func redactBody(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return string(body)
	}
	redacted := false
	for key := range fields {
		if sensitiveFields[key] {
			fields[key] = json.RawMessage(`"[SENSITIVE]"`)
			redacted = true
		}
	}
	if !redacted {
		return string(body)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return "[SENSITIVE]"
	}
	return string(out)
}
