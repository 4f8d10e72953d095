package model

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionRequest はSPAがログイン後に渡すアクセストークン
type SessionRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// SessionResponse は現在のセッション状態
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject,omitempty"`
}

// JWTCustomClaims はアクセストークンのクレーム
type JWTCustomClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims // 標準クレーム (iss, sub, exp など) を埋め込む
}

// RemoteConfig はクラウドバックエンドへの接続設定。URL と Key の両方が揃って初めて有効
type RemoteConfig struct {
	URL string `json:"url" mapstructure:"url"` // PostgreSQL の接続URL
	Key string `json:"key" mapstructure:"key"` // アクセストークン検証用のJWTシークレット
}

// Configured は両方の値が設定されているかを返す
func (c RemoteConfig) Configured() bool {
	return c.URL != "" && c.Key != ""
}

// SettingsRequest は設定更新リクエスト。nil のフィールドは変更しない
type SettingsRequest struct {
	APIKey    *string `json:"api_key,omitempty"`
	ModelName *string `json:"model_name,omitempty" validate:"omitempty,min=1"`
	RemoteURL *string `json:"remote_url,omitempty" validate:"omitempty,url"`
	RemoteKey *string `json:"remote_key,omitempty"`
}

// SettingsResponse は設定の参照結果。キー類はマスクして返す
type SettingsResponse struct {
	APIKeySet        bool   `json:"api_key_set"`
	ModelName        string `json:"model_name"`
	RemoteURL        string `json:"remote_url"`
	RemoteConfigured bool   `json:"remote_configured"`
}
