package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"task-tracker/backend/internal/models"
)

var ErrResetTokenNotFound = errors.New("reset token not found")

// ResetTokenRepository はパスワードリセットトークンの永続化を扱います。
type ResetTokenRepository interface {
	Save(ctx context.Context, token *models.PasswordResetToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) error
	CleanupExpired(ctx context.Context, now time.Time) error
}

type MySQLResetTokenRepo struct {
	DB *sql.DB
}

func NewResetTokenRepository(db *sql.DB) *MySQLResetTokenRepo {
	return &MySQLResetTokenRepo{DB: db}
}

func (r *MySQLResetTokenRepo) Save(ctx context.Context, t *models.PasswordResetToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)",
		t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert reset token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("could not get last insert ID: %w", err)
	}
	t.ID = id
	return nil
}

func (r *MySQLResetTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := "SELECT id, user_id, token_hash, expires_at, used_at, created_at FROM password_reset_tokens WHERE token_hash = ?"

	var pr models.PasswordResetToken
	var usedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, tokenHash).Scan(&pr.ID, &pr.UserID, &pr.TokenHash, &pr.ExpiresAt, &usedAt, &pr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		log.Println("[FindByTokenHash] SCAN ERROR:", err)
		return nil, fmt.Errorf("could not query reset token: %w", err)
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return &pr, nil
}

// MarkUsed はトークンを使用済みにします。既に使用済みならErrResetTokenNotFoundを返します。
func (r *MySQLResetTokenRepo) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL",
		at, id,
	)
	if err != nil {
		return fmt.Errorf("could not mark reset token used: %w", err)
	}
	return requireAffected(res, ErrResetTokenNotFound)
}

func (r *MySQLResetTokenRepo) CleanupExpired(ctx context.Context, now time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM password_reset_tokens
		WHERE used_at IS NOT NULL
		   OR expires_at < ?
	`, now)
	if err != nil {
		log.Println("[CleanupExpired] ERROR:", err)
		return fmt.Errorf("could not clean up reset tokens: %w", err)
	}
	return nil
}
