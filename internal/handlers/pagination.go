package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/services"
)

// pageURL は現在のリクエストURLのpageだけを差し替えた絶対URLを返します。
// 1ページ目はpageパラメータを取り除きます。
func pageURL(c *gin.Context, page int) *string {
	u := *c.Request.URL
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	u.Scheme = requestScheme(c)
	u.Host = c.Request.Host
	s := u.String()
	return &s
}

func requestScheme(c *gin.Context) string {
	if c.Request.TLS != nil {
		return "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		return proto
	}
	return "http"
}

// parsePage はpageクエリを解釈します。"last"は最終ページを表します。
func parsePage(raw string) (int, bool) {
	if raw == "" {
		return 1, true
	}
	if raw == "last" {
		return services.LastPage, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
