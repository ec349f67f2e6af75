// Package cache はタスク一覧ページのRedisキャッシュを提供します。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/models"
)

// NewClient はRedisクライアントを作成し、疎通を確認します。
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// TaskCache は所有者ごとのタスク一覧ページをRedisに保存します。
// キーは所有者の世代番号を含み、Invalidateで世代を進めると古いページは参照されなくなります。
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache は新しいTaskCacheを作成します。
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// VersionKey は所有者の世代番号のキーです。
func VersionKey(ownerID int64) string {
	return fmt.Sprintf("tasks:ver:{%d}", ownerID)
}

// ListKey は一覧ページのキーです。
func ListKey(ownerID, version int64, key string) string {
	return fmt.Sprintf("tasks:list:{%d}:v%d:%s", ownerID, version, key)
}

func (c *TaskCache) Version(ctx context.Context, ownerID int64) (int64, error) {
	v, err := c.rdb.Get(ctx, VersionKey(ownerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Get はキャッシュされたページを返します。見つからなければfalseです。
func (c *TaskCache) Get(ctx context.Context, ownerID, version int64, key string) (*models.TaskList, bool, error) {
	b, err := c.rdb.Get(ctx, ListKey(ownerID, version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list models.TaskList
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, false, err
	}
	// owner_idはJSONに含まれないので復元します。
	for i := range list.Tasks {
		list.Tasks[i].OwnerID = ownerID
	}
	if list.Tasks == nil {
		list.Tasks = []models.Task{}
	}
	return &list, true, nil
}

func (c *TaskCache) Set(ctx context.Context, ownerID, version int64, key string, list *models.TaskList) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, ListKey(ownerID, version, key), b, c.ttl).Err()
}

// Invalidate は世代を進めます。古い世代のページは参照されなくなり、TTLで消えます。
func (c *TaskCache) Invalidate(ctx context.Context, ownerID int64) error {
	return c.rdb.Incr(ctx, VersionKey(ownerID)).Err()
}

// Ping はRedisの疎通を確認します。
func (c *TaskCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
