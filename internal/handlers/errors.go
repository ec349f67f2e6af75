// Package handlers はHTTPリクエストを処理するハンドラーを提供します。
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

// コンテキストのキー
const (
	ContextKeyUser      = "user"
	ContextKeyRequestID = "request_id"
)

const (
	detailInternal           = "Internal server error."
	detailNotAuthenticated   = "Authentication credentials were not provided."
	detailTaskNotFound       = "No Task matches the given query."
	detailInvalidPage        = "Invalid page."
	detailInvalidCredentials = "No active account found with the given credentials"
)

// RespondError はエラーの種類に応じたステータスとボディを返します。
func RespondError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ve.Fields)
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailInvalidCredentials})
	case errors.Is(err, repositories.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": detailTaskNotFound})
	case errors.Is(err, services.ErrInvalidPage):
		c.JSON(http.StatusNotFound, gin.H{"detail": detailInvalidPage})
	default:
		log.Printf("[%s] %s %s: %v", c.GetString(ContextKeyRequestID), c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
	}
}

// bindJSON はボディをdstに読み込みます。失敗した場合はレスポンスを書き込みfalseを返します。
// 空のボディは空のオブジェクトとして扱い、必須チェックはサービス側に任せます。
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"non_field_errors": []string{"Invalid data. Expected a dictionary, but got " + jsonTypeName(typeErr.Value) + "."},
			})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{typeErr.Field: []string{typeMessage(typeErr)}})
		return false
	}

	c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
	return false
}

func typeMessage(e *json.UnmarshalTypeError) string {
	switch e.Type.Kind() {
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.String:
		return "Not a valid string."
	default:
		return "Invalid value."
	}
}

func jsonTypeName(value string) string {
	switch value {
	case "array":
		return "list"
	case "string":
		return "str"
	case "number":
		return "int"
	case "bool":
		return "bool"
	default:
		return value
	}
}

// currentUser は認証ミドルウェアが設定したユーザーを返します。
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}
