package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

// MemoryStore はMySQLの代わりにテストで使うインメモリのデータストアです。
// リポジトリのインターフェースをそれぞれ満たします。
type MemoryStore struct {
	mu          sync.Mutex
	users       map[int64]models.User
	tasks       map[int64]models.Task
	resetTokens map[int64]models.PasswordResetToken
	nextID      int64
	failWith    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       map[int64]models.User{},
		tasks:       map[int64]models.Task{},
		resetTokens: map[int64]models.PasswordResetToken{},
	}
}

// Fail は以降のすべての操作をerrで失敗させます。nilで元に戻ります。
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *MemoryStore) Users() *MemoryUserRepo             { return &MemoryUserRepo{s} }
func (s *MemoryStore) Tasks() *MemoryTaskRepo             { return &MemoryTaskRepo{s} }
func (s *MemoryStore) ResetTokens() *MemoryResetTokenRepo { return &MemoryResetTokenRepo{s} }

// DeleteUser はユーザーと、そのタスク・リセットトークンを削除します (ON DELETE CASCADE相当)。
func (s *MemoryStore) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for tid, t := range s.tasks {
		if t.OwnerID == id {
			delete(s.tasks, tid)
		}
	}
	for rid, r := range s.resetTokens {
		if r.UserID == id {
			delete(s.resetTokens, rid)
		}
	}
}

// TaskCount は全ユーザーのタスク数を返します。
func (s *MemoryStore) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// UserCount は登録済みユーザー数を返します。
func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

type MemoryUserRepo struct{ s *MemoryStore }

var _ repositories.UserRepository = (*MemoryUserRepo)(nil)

func (r *MemoryUserRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, repositories.ErrDuplicateEmail
		}
		if existing.Username == u.Username {
			return nil, repositories.ErrDuplicateUsername
		}
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC().Truncate(time.Microsecond)
	}
	u.ID = r.s.id()
	r.s.users[u.ID] = *u
	return u, nil
}

func (r *MemoryUserRepo) CheckUserExists(_ context.Context, email, username string) (bool, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, false, r.s.failWith
	}
	var emailExists, usernameExists bool
	for _, u := range r.s.users {
		emailExists = emailExists || u.Email == email
		usernameExists = usernameExists || u.Username == username
	}
	return emailExists, usernameExists, nil
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepo) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.LastLogin = &at
	r.s.users[id] = u
	return nil
}

func (r *MemoryUserRepo) UpdatePassword(_ context.Context, id int64, newHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = newHash
	r.s.users[id] = u
	return nil
}

type MemoryTaskRepo struct{ s *MemoryStore }

var _ repositories.TaskRepository = (*MemoryTaskRepo)(nil)

func (r *MemoryTaskRepo) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	t.ID = r.s.id()
	r.s.tasks[t.ID] = *t
	return t, nil
}

func (r *MemoryTaskRepo) FindByID(_ context.Context, id, ownerID int64) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	t, ok := r.s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, repositories.ErrTaskNotFound
	}
	return &t, nil
}

func (r *MemoryTaskRepo) List(_ context.Context, ownerID int64, filter models.TaskFilter) ([]models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	tasks := r.matching(ownerID, filter)
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
	if filter.Limit > 0 {
		if filter.Offset >= len(tasks) {
			return []models.Task{}, nil
		}
		end := filter.Offset + filter.Limit
		if end > len(tasks) {
			end = len(tasks)
		}
		tasks = tasks[filter.Offset:end]
	}
	return tasks, nil
}

func (r *MemoryTaskRepo) Count(_ context.Context, ownerID int64, filter models.TaskFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return 0, r.s.failWith
	}
	return len(r.matching(ownerID, filter)), nil
}

func (r *MemoryTaskRepo) Update(_ context.Context, t *models.Task) (*models.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	existing, ok := r.s.tasks[t.ID]
	if !ok || existing.OwnerID != t.OwnerID {
		return nil, repositories.ErrTaskNotFound
	}
	existing.Title = t.Title
	existing.Description = t.Description
	existing.Completed = t.Completed
	existing.UpdatedAt = t.UpdatedAt
	r.s.tasks[t.ID] = existing
	return &existing, nil
}

func (r *MemoryTaskRepo) Delete(_ context.Context, id, ownerID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	t, ok := r.s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return repositories.ErrTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

// matching はSQLのWHERE句と同じ条件で絞り込みます。タイトル検索は大文字小文字を区別しません。
func (r *MemoryTaskRepo) matching(ownerID int64, filter models.TaskFilter) []models.Task {
	tasks := []models.Task{}
	for _, t := range r.s.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		title := strings.ToLower(t.Title)
		ok := true
		for _, term := range filter.SearchTerms {
			if !strings.Contains(title, strings.ToLower(term)) {
				ok = false
				break
			}
		}
		if ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

type MemoryResetTokenRepo struct{ s *MemoryStore }

var _ repositories.ResetTokenRepository = (*MemoryResetTokenRepo)(nil)

func (r *MemoryResetTokenRepo) Save(_ context.Context, t *models.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	t.ID = r.s.id()
	r.s.resetTokens[t.ID] = *t
	return nil
}

func (r *MemoryResetTokenRepo) FindByTokenHash(_ context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.resetTokens {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, repositories.ErrResetTokenNotFound
}

func (r *MemoryResetTokenRepo) MarkUsed(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.resetTokens[id]
	if !ok || t.UsedAt != nil {
		return repositories.ErrResetTokenNotFound
	}
	t.UsedAt = &at
	r.s.resetTokens[id] = t
	return nil
}

func (r *MemoryResetTokenRepo) CleanupExpired(_ context.Context, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.resetTokens {
		if t.UsedAt != nil || t.ExpiresAt.Before(now) {
			delete(r.s.resetTokens, id)
		}
	}
	return nil
}
