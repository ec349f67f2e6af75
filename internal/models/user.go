package models

import "time"

// User はユーザーのデータベース構造体を表します。
// PasswordHashはJSONに出しません。
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash string     `json:"-"`
	IsStaff      bool       `json:"-"`
	IsSuperuser  bool       `json:"-"`
	LastLogin    *time.Time `json:"-"`
	DateJoined   time.Time  `json:"-"`
}

// UserPublic はレスポンスに含めるユーザーの公開フィールドです。
type UserPublic struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Public はユーザーの公開表現を返します。
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// UserRegisterRequest はユーザー登録リクエストです。
// ポインタは「未指定」と「空文字」を区別するためのものです。
type UserRegisterRequest struct {
	Email     *string `json:"email" validate:"required,notblank,max=254,email"`
	Username  *string `json:"username" validate:"required,notblank,max=150,username"`
	Password  *string `json:"password" validate:"required,notblank,max=128"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// UserLoginRequest はログインリクエストです。
type UserLoginRequest struct {
	Email    *string `json:"email" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

// LoginResponse はログイン成功時のレスポンスです。
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type UserForgotPasswordRequest struct {
	Email *string `json:"email" validate:"required,notblank,email"`
}

type UserResetPasswordRequest struct {
	Token    *string `json:"token" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank,max=128"`
}

// PasswordResetToken はパスワードリセット用トークンのレコードです。
// 生のトークンは保存せず、SHA-256のハッシュのみを保持します。
type PasswordResetToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// JWTClaims は検証済みトークンから取り出したユーザー情報です。
type JWTClaims struct {
	UserID int64
	Email  string
	ID     string
}
