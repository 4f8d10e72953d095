// Package session はリモート書き込みに必要な「現在の認証済みユーザー」を提供します。
// ユーザーがいないのは正常な状態で、その場合リモート書き込みは何もしません。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"nihongo_memo/internal/model"
)

// Provider は現在の subject (ユーザーID) を返します。見つからなければ ok=false
type Provider interface {
	Subject(ctx context.Context) (subject string, ok bool)
}

// Static は固定の subject を返す Provider (開発・テスト用)。空文字なら未ログイン扱い
type Static string

func (s Static) Subject(context.Context) (string, bool) {
	return string(s), s != ""
}

// KeyFunc はトークン検証用の鍵を返す関数。設定変更に追従するため毎回呼ぶ
type KeyFunc func() string

// JWTProvider はSPAから受け取ったアクセストークン (HS256) を保持し、
// 検証に成功した場合だけ sub クレームを subject として返します。
type JWTProvider struct {
	mu     sync.RWMutex
	token  string
	key    KeyFunc
	logger *slog.Logger
}

func NewJWTProvider(key KeyFunc, logger *slog.Logger) *JWTProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTProvider{
		key:    key,
		logger: logger.With(slog.String("component", "session")),
	}
}

// SetToken はトークンを検証してから保持します。不正なトークンは保持しません。
func (p *JWTProvider) SetToken(token string) (string, error) {
	subject, err := p.parse(token)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	p.logger.Info("Session established", slog.String("subject", subject))
	return subject, nil
}

// Token は保持中のトークン (未設定なら空文字)
func (p *JWTProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Clear はログアウト
func (p *JWTProvider) Clear() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	p.logger.Info("Session cleared")
}

func (p *JWTProvider) Subject(ctx context.Context) (string, bool) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		return "", false
	}

	// 期限切れや鍵の変更があり得るので毎回検証する
	subject, err := p.parse(token)
	if err != nil {
		p.logger.DebugContext(ctx, "Session token no longer valid", slog.Any("error", err))
		return "", false
	}
	return subject, true
}

func (p *JWTProvider) parse(tokenString string) (string, error) {
	secret := p.key()
	if secret == "" {
		return "", fmt.Errorf("session: %w: no verification key configured", model.ErrForbidden)
	}

	claims := &model.JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 署名アルゴリズムが期待通り(HS256)かチェック
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("session: %w: %w", model.ErrForbidden, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("session: %w: invalid token", model.ErrForbidden)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("session: %w: subject (sub) claim missing", model.ErrForbidden)
	}
	return subject, nil
}
