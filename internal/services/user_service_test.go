package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

type userTestDeps struct {
	users   *MockUserRepo
	tokens  *MockResetTokenRepo
	mailer  *MockMailer
	service *UserService
	now     time.Time
}

func setupUserService(t *testing.T) *userTestDeps {
	d := &userTestDeps{
		users:  &MockUserRepo{},
		tokens: &MockResetTokenRepo{},
		mailer: &MockMailer{},
		now:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	d.service = NewUserService(d.users, d.tokens, d.mailer, UserServiceOptions{
		UpdateLastLogin:    true,
		FrontendURL:        "http://localhost:3000/",
		ResetTokenLifetime: time.Hour,
	})
	d.service.now = func() time.Time { return d.now }
	t.Cleanup(func() {
		d.users.AssertExpectations(t)
		d.tokens.AssertExpectations(t)
		d.mailer.AssertExpectations(t)
	})
	return d
}

func ptr[T any](v T) *T { return &v }

func registerRequest(email, username, password string) models.UserRegisterRequest {
	return models.UserRegisterRequest{
		Email:     ptr(email),
		Username:  ptr(username),
		Password:  ptr(password),
		FirstName: ptr("Test"),
		LastName:  ptr("User"),
	}
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve
}

func TestUserService_RegisterUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("CheckUserExists", ctx, "new@example.com", "newuser").Return(false, false, nil)
		d.users.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "new@example.com" && u.Username == "newuser" && u.FirstName == "Test" &&
				repositories.VerifyPassword(u.PasswordHash, "Str0ng-Passw0rd!") == nil
		})).Return(&models.User{ID: 1, Email: "new@example.com", Username: "newuser"}, nil)

		user, err := d.service.RegisterUser(ctx, registerRequest("new@example.com", "newuser", "Str0ng-Passw0rd!"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
	})

	t.Run("DuplicateEmailAndUsername", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("CheckUserExists", ctx, "taken@example.com", "taken").Return(true, true, nil)

		_, err := d.service.RegisterUser(ctx, registerRequest("taken@example.com", "taken", "Str0ng-Passw0rd!"))
		ve := requireValidationError(t, err)
		assert.Equal(t, []string{msgDuplicateEmail}, ve.Fields["email"])
		assert.Equal(t, []string{msgDuplicateUsername}, ve.Fields["username"])
		d.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("InvalidEmails", func(t *testing.T) {
		for _, email := range []string{"", "invalidemail.com", "user@.com", "NotAnEmail"} {
			d := setupUserService(t)
			_, err := d.service.RegisterUser(ctx, registerRequest(email, "someone", "Str0ng-Passw0rd!"))
			ve := requireValidationError(t, err)
			assert.True(t, ve.Has("email"), "email %q", email)
			d.users.AssertNotCalled(t, "CheckUserExists", mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("WeakPasswords", func(t *testing.T) {
		for _, password := range []string{"", "short", "123", "password"} {
			d := setupUserService(t)
			d.users.On("CheckUserExists", ctx, "weak@example.com", "weakuser").Return(false, false, nil)

			_, err := d.service.RegisterUser(ctx, registerRequest("weak@example.com", "weakuser", password))
			ve := requireValidationError(t, err)
			assert.True(t, ve.Has("password"), "password %q", password)
			d.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		d := setupUserService(t)
		_, err := d.service.RegisterUser(ctx, models.UserRegisterRequest{})
		ve := requireValidationError(t, err)
		assert.Equal(t, []string{msgRequired}, ve.Fields["email"])
		assert.Equal(t, []string{msgRequired}, ve.Fields["username"])
		assert.Equal(t, []string{msgRequired}, ve.Fields["password"])
		assert.False(t, ve.Has("first_name"))
	})

	t.Run("InvalidUsername", func(t *testing.T) {
		d := setupUserService(t)
		_, err := d.service.RegisterUser(ctx, registerRequest("x@example.com", "bad name!", "Str0ng-Passw0rd!"))
		ve := requireValidationError(t, err)
		assert.Equal(t, []string{msgInvalidName}, ve.Fields["username"])

		_, err = d.service.RegisterUser(ctx, registerRequest("x@example.com", strings.Repeat("u", 151), "Str0ng-Passw0rd!"))
		ve = requireValidationError(t, err)
		assert.Equal(t, []string{"Ensure this field has no more than 150 characters."}, ve.Fields["username"])
	})

	t.Run("UniqueIndexRace", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("CheckUserExists", ctx, "race@example.com", "racer").Return(false, false, nil)
		d.users.On("Create", ctx, mock.Anything).Return(nil, repositories.ErrDuplicateUsername)

		_, err := d.service.RegisterUser(ctx, registerRequest("race@example.com", "racer", "Str0ng-Passw0rd!"))
		ve := requireValidationError(t, err)
		assert.Equal(t, []string{msgDuplicateUsername}, ve.Fields["username"])
	})
}

func TestUserService_AuthenticateUser(t *testing.T) {
	ctx := context.Background()
	hash, err := repositories.HashPassword("Str0ng-Passw0rd!")
	require.NoError(t, err)
	login := func(email, password string) models.UserLoginRequest {
		return models.UserLoginRequest{Email: ptr(email), Password: ptr(password)}
	}

	t.Run("Success", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("FindByEmail", ctx, "test@example.com").Return(&models.User{ID: 3, Email: "test@example.com", PasswordHash: hash}, nil)
		d.users.On("UpdateLastLogin", ctx, int64(3), d.now).Return(nil)

		user, err := d.service.AuthenticateUser(ctx, login("test@example.com", "Str0ng-Passw0rd!"))
		require.NoError(t, err)
		require.NotNil(t, user.LastLogin)
		assert.Equal(t, d.now, *user.LastLogin)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("FindByEmail", ctx, "test@example.com").Return(&models.User{ID: 3, PasswordHash: hash}, nil)

		_, err := d.service.AuthenticateUser(ctx, login("test@example.com", "wrong-password"))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("FindByEmail", ctx, "ghost@example.com").Return(nil, repositories.ErrUserNotFound)

		_, err := d.service.AuthenticateUser(ctx, login("ghost@example.com", "Str0ng-Passw0rd!"))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("MissingPassword", func(t *testing.T) {
		d := setupUserService(t)
		_, err := d.service.AuthenticateUser(ctx, models.UserLoginRequest{Email: ptr("test@example.com")})
		ve := requireValidationError(t, err)
		assert.Equal(t, []string{msgRequired}, ve.Fields["password"])
		assert.False(t, ve.Has("email"))
	})
}

func TestUserService_ForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("KnownEmail", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("FindByEmail", ctx, "test@example.com").Return(&models.User{ID: 3, Email: "test@example.com"}, nil)
		d.tokens.On("CleanupExpired", ctx, d.now).Return(nil)
		d.tokens.On("Save", ctx, mock.MatchedBy(func(tok *models.PasswordResetToken) bool {
			return tok.UserID == 3 && len(tok.TokenHash) == 64 && tok.ExpiresAt.Equal(d.now.Add(time.Hour))
		})).Return(nil)

		var resetURL string
		d.mailer.On("SendPasswordReset", ctx, "test@example.com", mock.Anything).
			Run(func(args mock.Arguments) { resetURL = args.String(2) }).
			Return(nil)

		require.NoError(t, d.service.ForgotPassword(ctx, models.UserForgotPasswordRequest{Email: ptr("test@example.com")}))
		assert.True(t, strings.HasPrefix(resetURL, "http://localhost:3000/reset-password/"), resetURL)

		token := strings.TrimPrefix(resetURL, "http://localhost:3000/reset-password/")
		saved := d.tokens.Calls[1].Arguments.Get(1).(*models.PasswordResetToken)
		assert.Equal(t, hashResetToken(token), saved.TokenHash)
		assert.NotEqual(t, token, saved.TokenHash)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("FindByEmail", ctx, "ghost@example.com").Return(nil, repositories.ErrUserNotFound)

		assert.NoError(t, d.service.ForgotPassword(ctx, models.UserForgotPasswordRequest{Email: ptr("ghost@example.com")}))
		d.tokens.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("MailFailureIsNotFatal", func(t *testing.T) {
		d := setupUserService(t)
		d.users.On("FindByEmail", ctx, "test@example.com").Return(&models.User{ID: 3, Email: "test@example.com"}, nil)
		d.tokens.On("CleanupExpired", ctx, d.now).Return(nil)
		d.tokens.On("Save", ctx, mock.Anything).Return(nil)
		d.mailer.On("SendPasswordReset", ctx, "test@example.com", mock.Anything).Return(errors.New("smtp down"))

		assert.NoError(t, d.service.ForgotPassword(ctx, models.UserForgotPasswordRequest{Email: ptr("test@example.com")}))
	})
}

func TestUserService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	const rawToken = "raw-reset-token"
	user := &models.User{ID: 3, Email: "test@example.com", Username: "testuser"}
	reset := func(password string) models.UserResetPasswordRequest {
		return models.UserResetPasswordRequest{Token: ptr(rawToken), Password: ptr(password)}
	}

	t.Run("Success", func(t *testing.T) {
		d := setupUserService(t)
		d.tokens.On("FindByTokenHash", ctx, hashResetToken(rawToken)).
			Return(&models.PasswordResetToken{ID: 5, UserID: 3, ExpiresAt: d.now.Add(time.Minute)}, nil)
		d.users.On("FindByID", ctx, int64(3)).Return(user, nil)
		d.tokens.On("MarkUsed", ctx, int64(5), d.now).Return(nil)
		d.users.On("UpdatePassword", ctx, int64(3), mock.MatchedBy(func(hash string) bool {
			return repositories.VerifyPassword(hash, "N3w-Passw0rd!") == nil
		})).Return(nil)

		assert.NoError(t, d.service.ResetPassword(ctx, reset("N3w-Passw0rd!")))
	})

	t.Run("UnknownToken", func(t *testing.T) {
		d := setupUserService(t)
		d.tokens.On("FindByTokenHash", ctx, hashResetToken(rawToken)).Return(nil, repositories.ErrResetTokenNotFound)

		ve := requireValidationError(t, d.service.ResetPassword(ctx, reset("N3w-Passw0rd!")))
		assert.Equal(t, []string{msgInvalidResetToken}, ve.Fields["token"])
	})

	t.Run("ExpiredOrUsed", func(t *testing.T) {
		d := setupUserService(t)
		used := d.now.Add(-time.Minute)
		for _, tok := range []*models.PasswordResetToken{
			{ID: 5, UserID: 3, ExpiresAt: d.now},
			{ID: 5, UserID: 3, ExpiresAt: d.now.Add(time.Hour), UsedAt: &used},
		} {
			d.tokens.On("FindByTokenHash", ctx, hashResetToken(rawToken)).Return(tok, nil).Once()
			ve := requireValidationError(t, d.service.ResetPassword(ctx, reset("N3w-Passw0rd!")))
			assert.True(t, ve.Has("token"))
		}
		d.tokens.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("WeakPassword", func(t *testing.T) {
		d := setupUserService(t)
		d.tokens.On("FindByTokenHash", ctx, hashResetToken(rawToken)).
			Return(&models.PasswordResetToken{ID: 5, UserID: 3, ExpiresAt: d.now.Add(time.Minute)}, nil)
		d.users.On("FindByID", ctx, int64(3)).Return(user, nil)

		ve := requireValidationError(t, d.service.ResetPassword(ctx, reset("password")))
		assert.Equal(t, []string{msgPasswordCommon}, ve.Fields["password"])
		d.tokens.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ConcurrentReuse", func(t *testing.T) {
		d := setupUserService(t)
		d.tokens.On("FindByTokenHash", ctx, hashResetToken(rawToken)).
			Return(&models.PasswordResetToken{ID: 5, UserID: 3, ExpiresAt: d.now.Add(time.Minute)}, nil)
		d.users.On("FindByID", ctx, int64(3)).Return(user, nil)
		d.tokens.On("MarkUsed", ctx, int64(5), d.now).Return(repositories.ErrResetTokenNotFound)

		ve := requireValidationError(t, d.service.ResetPassword(ctx, reset("N3w-Passw0rd!")))
		assert.True(t, ve.Has("token"))
		d.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}
