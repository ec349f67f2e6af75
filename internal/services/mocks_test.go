package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"task-tracker/backend/internal/models"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	args := m.Called(ctx, u)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepo) CheckUserExists(ctx context.Context, email, username string) (bool, bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepo) UpdatePassword(ctx context.Context, id int64, newHash string) error {
	return m.Called(ctx, id, newHash).Error(0)
}

type MockResetTokenRepo struct {
	mock.Mock
}

func (m *MockResetTokenRepo) Save(ctx context.Context, token *models.PasswordResetToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockResetTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	args := m.Called(ctx, tokenHash)
	if t, ok := args.Get(0).(*models.PasswordResetToken); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockResetTokenRepo) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockResetTokenRepo) CleanupExpired(ctx context.Context, now time.Time) error {
	return m.Called(ctx, now).Error(0)
}

type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	args := m.Called(ctx, t)
	if t, ok := args.Get(0).(*models.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTaskRepo) FindByID(ctx context.Context, id, ownerID int64) (*models.Task, error) {
	args := m.Called(ctx, id, ownerID)
	if t, ok := args.Get(0).(*models.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTaskRepo) List(ctx context.Context, ownerID int64, filter models.TaskFilter) ([]models.Task, error) {
	args := m.Called(ctx, ownerID, filter)
	if ts, ok := args.Get(0).([]models.Task); ok {
		return ts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTaskRepo) Count(ctx context.Context, ownerID int64, filter models.TaskFilter) (int, error) {
	args := m.Called(ctx, ownerID, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskRepo) Update(ctx context.Context, t *models.Task) (*models.Task, error) {
	args := m.Called(ctx, t)
	if t, ok := args.Get(0).(*models.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTaskRepo) Delete(ctx context.Context, id, ownerID int64) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	return m.Called(ctx, to, resetURL).Error(0)
}

type MockTaskListCache struct {
	mock.Mock
}

func (m *MockTaskListCache) Version(ctx context.Context, ownerID int64) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskListCache) Get(ctx context.Context, ownerID, version int64, key string) (*models.TaskList, bool, error) {
	args := m.Called(ctx, ownerID, version, key)
	list, _ := args.Get(0).(*models.TaskList)
	return list, args.Bool(1), args.Error(2)
}

func (m *MockTaskListCache) Set(ctx context.Context, ownerID, version int64, key string, list *models.TaskList) error {
	return m.Called(ctx, ownerID, version, key, list).Error(0)
}

func (m *MockTaskListCache) Invalidate(ctx context.Context, ownerID int64) error {
	return m.Called(ctx, ownerID).Error(0)
}
