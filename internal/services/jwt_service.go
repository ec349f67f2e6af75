package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"task-tracker/backend/internal/models"
)

const accessTokenType = "access"

// ErrInvalidToken はトークンの署名・有効期限・種別のいずれかが不正な場合のエラーです。
var ErrInvalidToken = errors.New("given token not valid for any token type")

type accessClaims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTService はJWTトークンの生成と検証を扱います。
type JWTService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewJWTService は新しいJWTServiceを作成します。
func NewJWTService(secret string, lifetime time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

// GenerateToken はアクセストークンを生成します。
func (s *JWTService) GenerateToken(userID int64, email string) (string, error) {
	now := s.now()
	claims := accessClaims{
		UserID:    userID,
		Email:     email,
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken はJWTトークンを検証し、クレームを返します。
// HS256以外のアルゴリズム、expのないトークン、access以外の種別は拒否します。
func (s *JWTService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.TokenType != accessTokenType || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return &models.JWTClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		ID:     claims.ID,
	}, nil
}
