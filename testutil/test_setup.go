// Package testutil はハンドラーのエンドツーエンドテスト用のルーターとヘルパーを提供します。
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/routes"
	"task-tracker/backend/internal/services"
)

// TestJWTSecret はテスト用のJWT署名鍵です。
const TestJWTSecret = "test-secret-key-that-is-at-least-32-bytes"

// TestEnv はテスト用ルーターと、その裏のストア・メーラーです。
type TestEnv struct {
	Router *gin.Engine
	Store  *MemoryStore
	Mailer *CaptureMailer
	DB     *FakePinger
}

// TestConfig はテスト用の設定を返します。
func TestConfig() config.Config {
	var cfg config.Config
	cfg.HTTP.AllowOrigins = []string{"http://localhost:3000"}
	cfg.JWT.Secret = TestJWTSecret
	cfg.JWT.AccessLifetime = 24 * time.Hour
	cfg.JWT.UpdateLastLogin = true
	cfg.Pagination.PageSize = 10
	cfg.Mail.FrontendURL = "http://localhost:3000"
	cfg.Mail.ResetTokenLifetime = time.Hour
	return cfg
}

// SetupTestRouter はインメモリのリポジトリでルーターをセットアップします。
func SetupTestRouter(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	env := &TestEnv{Store: store, Mailer: &CaptureMailer{}, DB: &FakePinger{}}
	env.Router = routes.NewRouter(routes.Options{
		Config:         TestConfig(),
		UserRepo:       store.Users(),
		TaskRepo:       store.Tasks(),
		ResetTokenRepo: store.ResetTokens(),
		Mailer:         env.Mailer,
		DB:             env.DB,
	})
	return env
}

// CreateTestUser はユーザーを直接ストアに作成します。
func CreateTestUser(t *testing.T, store *MemoryStore, username, email, password string) *models.User {
	t.Helper()
	hashedPassword, err := repositories.HashPassword(password)
	require.NoError(t, err)

	createdUser, err := store.Users().Create(context.Background(), &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	})
	require.NoError(t, err)
	require.NotZero(t, createdUser.ID)
	return createdUser
}

// DoJSON はJSONボディ付きのリクエストを送ります。tokenが空ならAuthorizationを付けません。
func DoJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

// DecodeJSON はレスポンスボディをvにデコードします。
func DecodeJSON(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), "body: %s", resp.Body.String())
}

// LoginAndGetToken はログインしてアクセストークンを返します。
func LoginAndGetToken(t *testing.T, router http.Handler, email, password string) (string, error) {
	t.Helper()
	resp := DoJSON(t, router, http.MethodPost, "/auth/login/", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.Code, resp.Body.String())
	}

	var loginRes models.LoginResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &loginRes); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	if loginRes.AccessToken == "" {
		return "", errors.New("access_token not found in login response")
	}
	return loginRes.AccessToken, nil
}

// CreateTestTask はAPI経由でタスクを作成します。
func CreateTestTask(t *testing.T, router http.Handler, token, title string, completed bool) *models.TaskResponse {
	t.Helper()
	resp := DoJSON(t, router, http.MethodPost, "/tasks/", token, map[string]any{
		"title":     title,
		"completed": completed,
	})
	require.Equal(t, http.StatusCreated, resp.Code, "タスク作成に失敗しました: %s", resp.Body.String())

	var created models.TaskResponse
	DecodeJSON(t, resp, &created)
	return &created
}

// CaptureMailer は送信されたリセットURLを記録します。
type CaptureMailer struct {
	mu   sync.Mutex
	sent map[string][]string
}

var _ services.Mailer = (*CaptureMailer)(nil)

func (m *CaptureMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string][]string{}
	}
	m.sent[to] = append(m.sent[to], resetURL)
	return nil
}

// LastURL は宛先に最後に送られたURLを返します。
func (m *CaptureMailer) LastURL(to string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := m.sent[to]
	if len(urls) == 0 {
		return "", false
	}
	return urls[len(urls)-1], true
}

// FakePinger はErrが設定されていればPingを失敗させます。
type FakePinger struct {
	mu  sync.Mutex
	Err error
}

func (p *FakePinger) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

func (p *FakePinger) PingContext(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Err
}

func (p *FakePinger) Ping(ctx context.Context) error {
	return p.PingContext(ctx)
}
