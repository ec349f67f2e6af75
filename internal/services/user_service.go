package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

const (
	msgDuplicateEmail    = "user with this email address already exists."
	msgDuplicateUsername = "A user with that username already exists."
	msgInvalidResetToken = "Invalid or expired token."
)

// 未登録メールアドレスでもbcrypt比較を1回行い、応答時間から存在が分からないようにします。
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := repositories.HashPassword("task-tracker-timing-dummy")
	if err != nil {
		log.Printf("Failed to prepare dummy password hash: %v", err)
	}
	return hash
})

// UserServiceOptions はUserServiceの動作設定です。
type UserServiceOptions struct {
	UpdateLastLogin    bool
	FrontendURL        string
	ResetTokenLifetime time.Duration
}

// UserService はユーザー関連のビジネスロジックを扱います。
type UserService struct {
	userRepo       repositories.UserRepository
	resetTokenRepo repositories.ResetTokenRepository
	mailer         Mailer
	passwords      *PasswordValidator
	validate       *validator.Validate
	opts           UserServiceOptions
	now            func() time.Time
}

// NewUserService は新しいUserServiceを作成します。
func NewUserService(userRepo repositories.UserRepository, resetTokenRepo repositories.ResetTokenRepository, mailer Mailer, opts UserServiceOptions) *UserService {
	if opts.ResetTokenLifetime <= 0 {
		opts.ResetTokenLifetime = time.Hour
	}
	return &UserService{
		userRepo:       userRepo,
		resetTokenRepo: resetTokenRepo,
		mailer:         mailer,
		passwords:      NewPasswordValidator(),
		validate:       newValidator(),
		opts:           opts,
		now:            time.Now,
	}
}

// RegisterUser はユーザーを登録します。検証エラーはすべて1つのValidationErrorにまとめて返します。
func (s *UserService) RegisterUser(ctx context.Context, req models.UserRegisterRequest) (*models.User, error) {
	ve := validateStruct(s.validate, req)

	if !ve.Has("email") && !ve.Has("username") {
		emailExists, usernameExists, err := s.userRepo.CheckUserExists(ctx, *req.Email, *req.Username)
		if err != nil {
			return nil, err
		}
		if emailExists {
			ve.Add("email", msgDuplicateEmail)
		}
		if usernameExists {
			ve.Add("username", msgDuplicateUsername)
		}
	}

	if !ve.Has("password") {
		attrs := UserAttributes{
			Username:  deref(req.Username),
			FirstName: deref(req.FirstName),
			LastName:  deref(req.LastName),
			Email:     deref(req.Email),
		}
		for _, msg := range s.passwords.Validate(*req.Password, attrs) {
			ve.Add("password", msg)
		}
	}

	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	hashedPassword, err := repositories.HashPassword(*req.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return nil, err
	}

	newUser := &models.User{
		Email:        *req.Email,
		Username:     *req.Username,
		FirstName:    deref(req.FirstName),
		LastName:     deref(req.LastName),
		PasswordHash: hashedPassword,
	}

	createdUser, err := s.userRepo.Create(ctx, newUser)
	switch {
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return nil, FieldError("email", msgDuplicateEmail)
	case errors.Is(err, repositories.ErrDuplicateUsername):
		return nil, FieldError("username", msgDuplicateUsername)
	case err != nil:
		return nil, err
	}
	return createdUser, nil
}

// AuthenticateUser はユーザーを認証し、成功したらユーザーを返します。
// メールアドレスが存在しない場合もパスワード不一致の場合もErrInvalidCredentialsを返します。
func (s *UserService) AuthenticateUser(ctx context.Context, req models.UserLoginRequest) (*models.User, error) {
	if err := validateStruct(s.validate, req).OrNil(); err != nil {
		return nil, err
	}

	foundUser, err := s.userRepo.FindByEmail(ctx, *req.Email)
	if errors.Is(err, repositories.ErrUserNotFound) {
		_ = repositories.VerifyPassword(dummyPasswordHash(), *req.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := repositories.VerifyPassword(foundUser.PasswordHash, *req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if s.opts.UpdateLastLogin {
		now := s.now().UTC().Truncate(time.Microsecond)
		if err := s.userRepo.UpdateLastLogin(ctx, foundUser.ID, now); err != nil {
			return nil, err
		}
		foundUser.LastLogin = &now
	}
	return foundUser, nil
}

// GetUserByID はIDでユーザーを取得します。
func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

// ForgotPassword はリセットトークンを発行してメールで送ります。
// 未登録のメールアドレスでも成功を返し、存在を明かしません。
func (s *UserService) ForgotPassword(ctx context.Context, req models.UserForgotPasswordRequest) error {
	if err := validateStruct(s.validate, req).OrNil(); err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, *req.Email)
	if errors.Is(err, repositories.ErrUserNotFound) {
		log.Printf("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if err := s.resetTokenRepo.CleanupExpired(ctx, now); err != nil {
		log.Printf("Failed to clean up reset tokens: %v", err)
	}

	token, err := generateResetToken()
	if err != nil {
		log.Printf("Failed to generate reset token: %v", err)
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	resetToken := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: now.Add(s.opts.ResetTokenLifetime),
		CreatedAt: now,
	}
	if err := s.resetTokenRepo.Save(ctx, resetToken); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(s.opts.FrontendURL, "/"), token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		log.Printf("failed to send reset email: %v", err)
	}
	return nil
}

// ResetPassword はトークンを使ってパスワードを再設定します。トークンは一度しか使えません。
func (s *UserService) ResetPassword(ctx context.Context, req models.UserResetPasswordRequest) error {
	if err := validateStruct(s.validate, req).OrNil(); err != nil {
		return err
	}

	resetToken, err := s.resetTokenRepo.FindByTokenHash(ctx, hashResetToken(*req.Token))
	if errors.Is(err, repositories.ErrResetTokenNotFound) {
		return FieldError("token", msgInvalidResetToken)
	}
	if err != nil {
		return err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if resetToken.UsedAt != nil || !now.Before(resetToken.ExpiresAt) {
		return FieldError("token", msgInvalidResetToken)
	}

	user, err := s.userRepo.FindByID(ctx, resetToken.UserID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return FieldError("token", msgInvalidResetToken)
	}
	if err != nil {
		return err
	}

	attrs := UserAttributes{Username: user.Username, FirstName: user.FirstName, LastName: user.LastName, Email: user.Email}
	if msgs := s.passwords.Validate(*req.Password, attrs); len(msgs) > 0 {
		return FieldError("password", msgs...)
	}

	hashedPassword, err := repositories.HashPassword(*req.Password)
	if err != nil {
		return err
	}

	// 先に使用済みにして、同じトークンでの同時リセットを1件に絞ります。
	if err := s.resetTokenRepo.MarkUsed(ctx, resetToken.ID, now); err != nil {
		if errors.Is(err, repositories.ErrResetTokenNotFound) {
			return FieldError("token", msgInvalidResetToken)
		}
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// generateResetToken はパスワードリセット用のランダムトークンを生成します。
func generateResetToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
