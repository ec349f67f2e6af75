package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

// LastPage は最終ページを指定するためのページ番号です。
const LastPage = -1

// listLoadTimeout は共有される一覧の問い合わせの上限時間です。
const listLoadTimeout = 10 * time.Second

// TaskListCache は所有者ごとのタスク一覧ページのキャッシュです。
// 書き込みのたびにInvalidateで世代を進め、古い世代のエントリは読まれなくなります。
type TaskListCache interface {
	Version(ctx context.Context, ownerID int64) (int64, error)
	Get(ctx context.Context, ownerID, version int64, key string) (*models.TaskList, bool, error)
	Set(ctx context.Context, ownerID, version int64, key string, list *models.TaskList) error
	Invalidate(ctx context.Context, ownerID int64) error
}

// TaskListQuery は一覧取得のクエリパラメータです。
type TaskListQuery struct {
	Completed *bool
	Search    string
	Page      int
}

// TaskPage は一覧の1ページ分の結果です。
type TaskPage struct {
	Count    int
	Page     int
	NumPages int
	Tasks    []models.Task
}

func (p *TaskPage) HasNext() bool     { return p.Page < p.NumPages }
func (p *TaskPage) HasPrevious() bool { return p.Page > 1 }

// TaskService はタスク関連のビジネスロジックを扱います。すべての操作は所有者に限定されます。
type TaskService struct {
	taskRepo repositories.TaskRepository
	cache    TaskListCache
	group    singleflight.Group
	validate *validator.Validate
	pageSize int
	now      func() time.Time
}

// NewTaskService は新しいTaskServiceを作成します。cacheはnilでも構いません。
func NewTaskService(taskRepo repositories.TaskRepository, cache TaskListCache, pageSize int) *TaskService {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &TaskService{
		taskRepo: taskRepo,
		cache:    cache,
		validate: newValidator(),
		pageSize: pageSize,
		now:      time.Now,
	}
}


// List は所有者のタスクを新しい順にページ単位で返します。
// 範囲外のページはErrInvalidPageになります。ただし0件の1ページ目は有効です。
func (s *TaskService) List(ctx context.Context, ownerID int64, q TaskListQuery) (*TaskPage, error) {
	if q.Page == 0 || q.Page < LastPage {
		return nil, ErrInvalidPage
	}

	filter := models.TaskFilter{
		Completed:   q.Completed,
		SearchTerms: SplitSearchTerms(q.Search),
	}
	count, err := s.taskRepo.Count(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	numPages := 1
	if count > 0 {
		numPages = (count + s.pageSize - 1) / s.pageSize
	}
	page := q.Page
	if page == LastPage {
		page = numPages
	}
	if page > numPages {
		return nil, ErrInvalidPage
	}

	filter.Limit = s.pageSize
	filter.Offset = (page - 1) * s.pageSize
	list, err := s.loadList(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	return &TaskPage{Count: count, Page: page, NumPages: numPages, Tasks: list.Tasks}, nil
}

// loadList はキャッシュがあればキャッシュから、なければリポジトリから一覧を読みます。
// 同じ世代・同じ条件の同時リクエストはsingleflightで1回の問い合わせにまとめます。
func (s *TaskService) loadList(ctx context.Context, ownerID int64, filter models.TaskFilter) (*models.TaskList, error) {
	if s.cache == nil {
		return s.queryList(ctx, ownerID, filter)
	}

	version, err := s.cache.Version(ctx, ownerID)
	if err != nil {
		log.Printf("task cache unavailable: %v", err)
		return s.queryList(ctx, ownerID, filter)
	}
	key := listCacheKey(filter)
	if list, ok, err := s.cache.Get(ctx, ownerID, version, key); err != nil {
		log.Printf("task cache get failed: %v", err)
	} else if ok {
		return list, nil
	}

	flightKey := fmt.Sprintf("%d:%d:%s", ownerID, version, key)
	ch := s.group.DoChan(flightKey, func() (interface{}, error) {
		// 共有の問い合わせは呼び出し元のキャンセルから切り離します。
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listLoadTimeout)
		defer cancel()

		list, err := s.queryList(flightCtx, ownerID, filter)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(flightCtx, ownerID, version, key, list); err != nil {
			log.Printf("task cache set failed: %v", err)
		}
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.TaskList), nil
	}
}

func (s *TaskService) queryList(ctx context.Context, ownerID int64, filter models.TaskFilter) (*models.TaskList, error) {
	tasks, err := s.taskRepo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	return &models.TaskList{Tasks: tasks}, nil
}

// CreateTask は呼び出し元を所有者としてタスクを作成します。
func (s *TaskService) CreateTask(ctx context.Context, ownerID int64, req models.TaskCreateRequest) (*models.Task, error) {
	if err := validateStruct(s.validate, req).OrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	task := &models.Task{
		OwnerID:   ownerID,
		Title:     *req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	created, err := s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return created, nil
}

// GetTask は所有者のタスクを取得します。
func (s *TaskService) GetTask(ctx context.Context, id, ownerID int64) (*models.Task, error) {
	return s.taskRepo.FindByID(ctx, id, ownerID)
}

// UpdateTask はタスクを更新します。partialがfalse(PUT)の場合titleは必須です。
// updated_atは必ず前回より進みます。
func (s *TaskService) UpdateTask(ctx context.Context, id, ownerID int64, req models.TaskUpdateRequest, partial bool) (*models.Task, error) {
	ve := validateStruct(s.validate, req)
	if !partial && req.Title == nil {
		ve.Add("title", msgRequired)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.FindByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	task.UpdatedAt = nextUpdatedAt(s.now(), task.UpdatedAt)

	updated, err := s.taskRepo.Update(ctx, task)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	return updated, nil
}

// DeleteTask は所有者のタスクを削除します。
func (s *TaskService) DeleteTask(ctx context.Context, id, ownerID int64) error {
	if err := s.taskRepo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.invalidate(ctx, ownerID)
	return nil
}

func (s *TaskService) invalidate(ctx context.Context, ownerID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		log.Printf("task cache invalidate failed for owner %d: %v", ownerID, err)
	}
}

// nextUpdatedAt は現在時刻と前回値+1µsの大きい方をマイクロ秒精度で返します。
func nextUpdatedAt(now, prev time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	floor := prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}

// SplitSearchTerms は検索文字列を空白とカンマで分割します。
func SplitSearchTerms(search string) []string {
	terms := strings.FieldsFunc(search, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if len(terms) == 0 {
		return nil
	}
	return terms
}

func listCacheKey(filter models.TaskFilter) string {
	completed := "any"
	if filter.Completed != nil {
		completed = fmt.Sprintf("%t", *filter.Completed)
	}
	return fmt.Sprintf("c=%s:l=%d:o=%d:s=%q", completed, filter.Limit, filter.Offset, filter.SearchTerms)
}
