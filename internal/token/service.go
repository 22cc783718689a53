// Package token は署名付きIDトークン（JWT）の発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL はトークンの既定の有効期間（発行から1日）。
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidToken は署名不一致・形式不正・必須クレーム欠落を表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken は有効期限切れを表す。
	ErrExpiredToken = errors.New("expired token")
)

// Claims はトークンのペイロード。emailがアクターの識別子となる。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service はHS256でトークンを発行・検証する。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService はServiceを生成する。ttlが0以下の場合はDefaultTTLを使う。
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はemailを埋め込み、発行時刻からttl後に失効するトークンを発行する。
func (s *Service) Issue(email string) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify は署名と有効期限の両方を検証してからクレームを返す。
// 期限切れはErrExpiredToken、それ以外の失敗はErrInvalidTokenでラップして返す。
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
