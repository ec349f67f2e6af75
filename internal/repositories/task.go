package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"task-tracker/backend/internal/models"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskRepository はタスクの永続化を扱います。すべての操作は所有者で絞り込まれます。
type TaskRepository interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	FindByID(ctx context.Context, id, ownerID int64) (*models.Task, error)
	List(ctx context.Context, ownerID int64, filter models.TaskFilter) ([]models.Task, error)
	Count(ctx context.Context, ownerID int64, filter models.TaskFilter) (int, error)
	Update(ctx context.Context, t *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// MySQLTaskRepo はTaskRepositoryのMySQL実装です。
type MySQLTaskRepo struct {
	DB *sql.DB
}

// NewTaskRepository は新しいMySQLTaskRepoインスタンスを作成します。
func NewTaskRepository(db *sql.DB) *MySQLTaskRepo {
	return &MySQLTaskRepo{DB: db}
}

const selectTaskColumns = "id, owner_id, title, description, completed, created_at, updated_at"

// Create は新しいタスクを挿入します。タイムスタンプは呼び出し側で設定済みであること。
func (r *MySQLTaskRepo) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	query := "INSERT INTO tasks (owner_id, title, description, completed, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := r.DB.ExecContext(ctx, query, t.OwnerID, t.Title, t.Description, t.Completed, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		log.Printf("Failed to insert task: %v", err)
		return nil, fmt.Errorf("could not insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("could not get last insert ID: %w", err)
	}
	t.ID = id
	return t, nil
}

// FindByID は所有者のタスクの中からIDで検索します。他人のタスクは存在しないものとして扱います。
func (r *MySQLTaskRepo) FindByID(ctx context.Context, id, ownerID int64) (*models.Task, error) {
	query := "SELECT " + selectTaskColumns + " FROM tasks WHERE id = ? AND owner_id = ?"
	var t models.Task
	err := r.DB.QueryRowContext(ctx, query, id, ownerID).Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}
	return &t, nil
}

// List は所有者のタスクを新しい順に取得します。
func (r *MySQLTaskRepo) List(ctx context.Context, ownerID int64, filter models.TaskFilter) ([]models.Task, error) {
	where, args := taskWhereClause(ownerID, filter)
	query := "SELECT " + selectTaskColumns + " FROM tasks WHERE " + where + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("Failed to query tasks: %v", err)
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}
	return tasks, nil
}

// Count は条件に一致する所有者のタスク数を返します。
func (r *MySQLTaskRepo) Count(ctx context.Context, ownerID int64, filter models.TaskFilter) (int, error) {
	where, args := taskWhereClause(ownerID, filter)
	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("could not count tasks: %w", err)
	}
	return n, nil
}

// Update はタスクの可変フィールドを更新します。owner_idとcreated_atは変更しません。
func (r *MySQLTaskRepo) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	query := "UPDATE tasks SET title = ?, description = ?, completed = ?, updated_at = ? WHERE id = ? AND owner_id = ?"
	res, err := r.DB.ExecContext(ctx, query, t.Title, t.Description, t.Completed, t.UpdatedAt, t.ID, t.OwnerID)
	if err != nil {
		log.Printf("Failed to update task: %v", err)
		return nil, fmt.Errorf("could not update task: %w", err)
	}
	if err := requireAffected(res, ErrTaskNotFound); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete は所有者のタスクを削除します。
func (r *MySQLTaskRepo) Delete(ctx context.Context, id, ownerID int64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		log.Printf("Failed to delete task: %v", err)
		return fmt.Errorf("could not delete task: %w", err)
	}
	return requireAffected(res, ErrTaskNotFound)
}

// taskWhereClause は所有者・完了状態・タイトル検索の条件を組み立てます。
func taskWhereClause(ownerID int64, filter models.TaskFilter) (string, []any) {
	conds := []string{"owner_id = ?"}
	args := []any{ownerID}
	if filter.Completed != nil {
		conds = append(conds, "completed = ?")
		args = append(args, *filter.Completed)
	}
	for _, term := range filter.SearchTerms {
		conds = append(conds, "title LIKE ?")
		args = append(args, "%"+EscapeLike(term)+"%")
	}
	return strings.Join(conds, " AND "), args
}

// EscapeLike はLIKEパターン中のワイルドカードをエスケープします。
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
