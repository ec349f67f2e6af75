// Package repositories はデータベース操作を行うリポジトリを提供します。
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/crypto/bcrypt" // パスワードのハッシュ化用

	"task-tracker/backend/internal/models"
)

// MySQLの重複エントリーエラーコード
const mysqlErrDuplicateEntry = 1062

var (
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrUserNotFound      = errors.New("user not found")
)

// UserRepository はユーザーの永続化を扱います。
type UserRepository interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	CheckUserExists(ctx context.Context, email, username string) (emailExists, usernameExists bool, err error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, newHash string) error
}

// MySQLUserRepo はUserRepositoryのMySQL実装です。
type MySQLUserRepo struct {
	DB *sql.DB
}

// NewUserRepository は新しいMySQLUserRepoインスタンスを作成します。
func NewUserRepository(db *sql.DB) *MySQLUserRepo {
	return &MySQLUserRepo{DB: db}
}

// HashPassword は与えられたパスワードをbcryptでハッシュ化します。
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

// VerifyPassword はハッシュ化されたパスワードと平文のパスワードを比較します。
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

const selectUserColumns = "id, email, username, first_name, last_name, password_hash, is_staff, is_superuser, last_login, date_joined"

// Create は新しいユーザーをデータベースに挿入します。
func (r *MySQLUserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC().Truncate(time.Microsecond)
	}
	query := "INSERT INTO users (email, username, first_name, last_name, password_hash, date_joined) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := r.DB.ExecContext(ctx, query, u.Email, u.Username, u.FirstName, u.LastName, u.PasswordHash, u.DateJoined)
	if err != nil {
		if dupErr := duplicateUserError(err); dupErr != nil {
			return nil, dupErr
		}
		log.Printf("Failed to insert user: %v", err)
		return nil, fmt.Errorf("could not insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get last insert ID: %w", err)
	}
	u.ID = id
	return u, nil
}

// duplicateUserError はUNIQUE制約違反をどの列が衝突したかに応じたエラーに変換します。
func duplicateUserError(err error) error {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) || mysqlErr.Number != mysqlErrDuplicateEntry {
		return nil
	}
	if strings.Contains(mysqlErr.Message, "username") {
		return ErrDuplicateUsername
	}
	return ErrDuplicateEmail
}

// CheckUserExists はメールアドレスとユーザー名がそれぞれ使用済みかを返します。
func (r *MySQLUserRepo) CheckUserExists(ctx context.Context, email, username string) (bool, bool, error) {
	query := `
        SELECT
            EXISTS(SELECT 1 FROM users WHERE email = ?) AS email_exists,
            EXISTS(SELECT 1 FROM users WHERE username = ?) AS username_exists
    `
	var emailExists, usernameExists bool
	if err := r.DB.QueryRowContext(ctx, query, email, username).Scan(&emailExists, &usernameExists); err != nil {
		return false, false, fmt.Errorf("could not check user existence: %w", err)
	}
	return emailExists, usernameExists, nil
}

// FindByEmail はメールアドレスでユーザーを検索します。
func (r *MySQLUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + selectUserColumns + " FROM users WHERE email = ?"
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.Printf("Failed to query user by email: %v", err)
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return u, nil
}

// FindByID はIDでユーザーを検索します。
func (r *MySQLUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := "SELECT " + selectUserColumns + " FROM users WHERE id = ?"
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return u, nil
}

// UpdateLastLogin は最終ログイン日時を記録します。
func (r *MySQLUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, id)
	if err != nil {
		return fmt.Errorf("could not update last login: %w", err)
	}
	return requireAffected(res, ErrUserNotFound)
}

// UpdatePassword はユーザーのパスワードを更新します。
func (r *MySQLUserRepo) UpdatePassword(ctx context.Context, id int64, newHash string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", newHash, id)
	if err != nil {
		return fmt.Errorf("could not update password: %w", err)
	}
	return requireAffected(res, ErrUserNotFound)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.IsStaff,
		&u.IsSuperuser,
		&lastLogin,
		&u.DateJoined,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

// requireAffected は影響行数が0の場合にnotFoundを返します。
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
