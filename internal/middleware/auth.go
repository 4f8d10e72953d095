package middleware

import (
	"net/http"
	"strings"

	"nihongo_memo/internal/model"
	"nihongo_memo/internal/session"
	"nihongo_memo/internal/webutil"
)

// SessionTokenMiddleware は Authorization ヘッダーの Bearer トークンを現在のセッションとして取り込みます。
// ヘッダーが無いリクエストはそのまま通します (未ログインでもローカル操作は可能)。
func SessionTokenMiddleware(provider *session.JWTProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := GetLogger(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			// "Bearer {token}" の形式を検証
			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				logger.Warn("Session token rejected: Invalid Authorization header format")
				appErr := model.NewAppError("UNAUTHORIZED", "Authorizationヘッダーの形式が正しくありません。", "", model.ErrForbidden)
				webutil.HandleError(w, logger, appErr)
				return
			}
			tokenString := headerParts[1]

			// 同じトークンなら検証し直さない (Subject 側で毎回検証される)
			if tokenString != provider.Token() {
				if _, err := provider.SetToken(tokenString); err != nil {
					logger.Warn("Session token rejected", "error", err)
					appErr := model.NewAppError("INVALID_TOKEN", "トークンが無効です。", "", err)
					webutil.HandleError(w, logger, appErr)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
