// Package modelsはユーザーとタスクのデータ構造を定義します。
package models

import "time"

// Task はタスクのデータベース構造体を表します。
type Task struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskResponse はAPIが返すタスク表現です。ownerは公開フィールドのみ含みます。
type TaskResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Completed   bool       `json:"completed"`
	Owner       UserPublic `json:"owner"`
}

// NewTaskResponse はタスクと所有者からレスポンスを組み立てます。
func NewTaskResponse(t *Task, owner UserPublic) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Completed:   t.Completed,
		Owner:       owner,
	}
}

// TaskCreateRequest はタスク作成リクエストです。
// id, owner, created_at, updated_at はボディにあっても無視されます。
type TaskCreateRequest struct {
	Title       *string `json:"title" validate:"required,notblank,max=200"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// TaskUpdateRequest はPUT/PATCHのリクエストです。nilのフィールドは変更しません。
type TaskUpdateRequest struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// TaskFilter は一覧取得時の絞り込み条件です。
type TaskFilter struct {
	Completed   *bool
	SearchTerms []string
	Limit       int
	Offset      int
}

// TaskList はキャッシュ可能な一覧の1ページ分のタスクです。
type TaskList struct {
	Tasks []Task `json:"tasks"`
}

// Page はページネーションされた一覧のレスポンスです。
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
