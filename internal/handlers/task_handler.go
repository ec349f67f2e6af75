package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

// TaskHandler はタスク関連のハンドラーを管理します。
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler は新しいTaskHandlerを作成します。
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// ListTasksHandler はログインユーザーのタスク一覧をページ単位で返します。
func (h *TaskHandler) ListTasksHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailNotAuthenticated})
		return
	}

	query := services.TaskListQuery{Search: c.Query("search")}
	if raw := c.Query("completed"); raw != "" {
		completed, valid := parseBool(raw)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"completed": []string{"Must be a valid boolean."}})
			return
		}
		query.Completed = &completed
	}
	page, valid := parsePage(c.Query("page"))
	if !valid {
		RespondError(c, services.ErrInvalidPage)
		return
	}
	query.Page = page

	result, err := h.taskService.List(c.Request.Context(), user.ID, query)
	if err != nil {
		RespondError(c, err)
		return
	}

	owner := user.Public()
	resp := models.Page[models.TaskResponse]{
		Count:   result.Count,
		Results: make([]models.TaskResponse, 0, len(result.Tasks)),
	}
	for i := range result.Tasks {
		resp.Results = append(resp.Results, models.NewTaskResponse(&result.Tasks[i], owner))
	}
	if result.HasNext() {
		resp.Next = pageURL(c, result.Page+1)
	}
	if result.HasPrevious() {
		resp.Previous = pageURL(c, result.Page-1)
	}
	c.JSON(http.StatusOK, resp)
}

// CreateTaskHandler はログインユーザーを所有者としてタスクを作成します。
func (h *TaskHandler) CreateTaskHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailNotAuthenticated})
		return
	}

	var req models.TaskCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), user.ID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewTaskResponse(task, user.Public()))
}

// GetTaskHandler は指定IDのタスクを返します。
func (h *TaskHandler) GetTaskHandler(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), id, user.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewTaskResponse(task, user.Public()))
}

// UpdateTaskHandler はPUT(全体更新)とPATCH(部分更新)を処理します。
func (h *TaskHandler) UpdateTaskHandler(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	var req models.TaskUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	partial := c.Request.Method == http.MethodPatch
	task, err := h.taskService.UpdateTask(c.Request.Context(), id, user.ID, req, partial)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewTaskResponse(task, user.Public()))
}

// DeleteTaskHandler はタスクを削除します。
func (h *TaskHandler) DeleteTaskHandler(c *gin.Context) {
	user, id, ok := h.taskTarget(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), id, user.ID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// taskTarget はログインユーザーとパスのIDを取り出します。数値でないIDは404にします。
func (h *TaskHandler) taskTarget(c *gin.Context) (*models.User, int64, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": detailNotAuthenticated})
		return nil, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		RespondError(c, repositories.ErrTaskNotFound)
		return nil, 0, false
	}
	return user, id, true
}

func parseBool(raw string) (bool, bool) {
	switch raw {
	case "true", "True", "1":
		return true, true
	case "false", "False", "0":
		return false, true
	default:
		return false, false
	}
}
