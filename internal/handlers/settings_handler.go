// internal/handlers/settings_handler.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"nihongo_memo/internal/middleware"
	"nihongo_memo/internal/model"
	"nihongo_memo/internal/service"
	"nihongo_memo/internal/webutil"

	"github.com/go-playground/validator/v10"
)

// SettingsStore は設定画面から読み書きする永続設定 (config.CredentialStore が実装)
type SettingsStore interface {
	APIKey() string
	SetAPIKey(key string) error
	ModelName() string
	SetModelName(name string) error
	RemoteConfig() model.RemoteConfig
	SetRemoteConfig(url, key string) error
}

// SessionStore はアクセストークンの保持先 (session.JWTProvider が実装)
type SessionStore interface {
	SetToken(token string) (string, error)
	Clear()
	Subject(ctx context.Context) (string, bool)
}

// Refresher はログイン直後にリモートから取り直すためのもの (service.Library が実装)
type Refresher interface {
	Refresh(ctx context.Context) *service.Task
}

type SettingsHandler struct {
	store     SettingsStore
	session   SessionStore
	refresher Refresher
	logger    *slog.Logger
}

func NewSettingsHandler(store SettingsStore, sess SessionStore, refresher Refresher, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{
		store:     store,
		session:   sess,
		refresher: refresher,
		logger:    logger,
	}
}

func (h *SettingsHandler) settingsResponse() model.SettingsResponse {
	remote := h.store.RemoteConfig()
	return model.SettingsResponse{
		APIKeySet:        h.store.APIKey() != "",
		ModelName:        h.store.ModelName(),
		RemoteURL:        remote.URL,
		RemoteConfigured: remote.Configured(),
	}
}

// GetSettings はキー類をマスクした設定を返します
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())
	webutil.RespondWithJSON(w, http.StatusOK, h.settingsResponse(), logger)
}

// PutSettings は指定されたフィールドだけ更新します
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(slog.String("handler", "PutSettings"))

	var req model.SettingsRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	if !h.validate(w, logger, req) {
		return
	}

	if req.APIKey != nil {
		if err := h.store.SetAPIKey(*req.APIKey); err != nil {
			webutil.HandleError(w, logger, err)
			return
		}
	}
	if req.ModelName != nil {
		if err := h.store.SetModelName(*req.ModelName); err != nil {
			webutil.HandleError(w, logger, err)
			return
		}
	}
	if req.RemoteURL != nil || req.RemoteKey != nil {
		current := h.store.RemoteConfig()
		url, key := current.URL, current.Key
		if req.RemoteURL != nil {
			url = *req.RemoteURL
		}
		if req.RemoteKey != nil {
			key = *req.RemoteKey
		}
		if err := h.store.SetRemoteConfig(url, key); err != nil {
			webutil.HandleError(w, logger, err)
			return
		}
		logger.Info("Remote configuration updated", slog.Bool("configured", url != "" && key != ""))
	}

	webutil.RespondWithJSON(w, http.StatusOK, h.settingsResponse(), logger)
}

// GetSession は現在ログイン中かどうかを返します
func (h *SettingsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())
	subject, ok := h.session.Subject(r.Context())
	webutil.RespondWithJSON(w, http.StatusOK, model.SessionResponse{Authenticated: ok, Subject: subject}, logger)
}

// PutSession はアクセストークンを登録し、全コレクションをリモートから取り直します
func (h *SettingsHandler) PutSession(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(slog.String("handler", "PutSession"))

	var req model.SessionRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	if !h.validate(w, logger, req) {
		return
	}

	subject, err := h.session.SetToken(req.AccessToken)
	if err != nil {
		logger.Warn("Session token rejected", slog.Any("error", err))
		appErr := model.NewAppError("INVALID_TOKEN", "トークンが無効です。", "access_token", err)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if h.refresher != nil {
		h.refresher.Refresh(r.Context())
	}
	webutil.RespondWithJSON(w, http.StatusOK, model.SessionResponse{Authenticated: true, Subject: subject}, logger)
}

// DeleteSession はログアウト。ローカルのデータはそのまま残す
func (h *SettingsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.session.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SettingsHandler) validate(w http.ResponseWriter, logger *slog.Logger, req any) bool {
	err := webutil.Validator.Struct(req)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		logger.Warn("Validation failed", slog.Any("errors", validationErrors.Error()))
		firstErr := validationErrors[0]
		appErr := model.NewAppError(
			"VALIDATION_ERROR",
			firstErr.Translate(webutil.Trans),
			firstErr.Field(),
			model.ErrInvalidInput,
		)
		webutil.HandleError(w, logger, appErr)
		return false
	}
	logger.Error("Unexpected error during validation", slog.Any("error", err))
	webutil.HandleError(w, logger, err)
	return false
}
