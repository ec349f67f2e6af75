package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

const (
	requestIDHeader     = "X-Request-ID"
	maxRequestIDLength  = 128
	wwwAuthenticate     = `Bearer realm="api"`
	detailNotProvided   = "Authentication credentials were not provided."
	detailInvalidToken  = "Given token not valid for any token type"
	detailBadAuthHeader = "Authorization header must contain two space-delimited values"
)

// RequestID はX-Request-IDを引き継ぐか新しく発行し、コンテキストとレスポンスヘッダーに設定します。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AuthMiddleware はJWTトークンを検証し、ユーザーをコンテキストに設定するミドルウェアです。
// トークンのユーザーが削除済みの場合も401を返します。
func AuthMiddleware(jwtService *services.JWTService, userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) == 0 || parts[0] != "Bearer" {
			unauthorized(c, gin.H{"detail": detailNotProvided})
			return
		}
		if len(parts) != 2 {
			unauthorized(c, gin.H{"detail": detailBadAuthHeader, "code": "bad_authorization_header"})
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			unauthorized(c, gin.H{"detail": detailInvalidToken, "code": "token_not_valid"})
			return
		}

		user, err := userService.GetUserByID(c.Request.Context(), claims.UserID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			unauthorized(c, gin.H{"detail": "User not found", "code": "user_not_found"})
			return
		}
		if err != nil {
			handlers.RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(handlers.ContextKeyUser, user)
		c.Next()
	}
}

func unauthorized(c *gin.Context, body gin.H) {
	c.Header("WWW-Authenticate", wwwAuthenticate)
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}
