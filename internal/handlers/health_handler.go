package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DBPinger はデータベースの疎通確認です。*sql.DBが満たします。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CachePinger はキャッシュの疎通確認です。
type CachePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler はヘルスチェックを扱います。cacheはnilでも構いません。
type HealthHandler struct {
	db    DBPinger
	cache CachePinger
}

func NewHealthHandler(db DBPinger, cache CachePinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// HealthHandler はデータベースと(設定されていれば)キャッシュの状態を返します。
func (h *HealthHandler) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok"}

	if err := h.db.PingContext(ctx); err != nil {
		log.Printf("health: database ping failed: %v", err)
		status = http.StatusServiceUnavailable
		body["status"] = "error"
		body["database"] = "error"
	}
	if h.cache != nil {
		body["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			log.Printf("health: cache ping failed: %v", err)
			status = http.StatusServiceUnavailable
			body["status"] = "error"
			body["cache"] = "error"
		}
	}

	c.JSON(status, body)
}
