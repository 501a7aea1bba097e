package tasks

import (
	"encoding/json"
	"errors"
	"strconv"

	"go_crew/internal/assign"
	"go_crew/internal/httpx"
	"go_crew/internal/model"
	"go_crew/internal/review"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler handles task related requests
type Handler struct {
	db       *gorm.DB
	engine   *review.Engine
	resolver *assign.Resolver
}

// NewHandler creates a new task handler
func NewHandler(db *gorm.DB, engine *review.Engine, resolver *assign.Resolver) *Handler {
	return &Handler{db: db, engine: engine, resolver: resolver}
}

// List handles GET /api/v1/tasks
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	status := c.Query("status")
	assignee := c.Query("assigneeId")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.Model(&model.Task{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if assignee != "" {
		assigneeID, err := strconv.Atoi(assignee)
		if err != nil || assigneeID <= 0 {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid assigneeId"))
			return
		}
		query = query.Where("assignee_id = ?", assigneeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count tasks", err))
		return
	}

	var list []model.Task
	err := query.
		Preload("Assignee").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&list).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list tasks", err))
		return
	}

	httpx.OKItems(c, list, total, page, pageSize)
}

// Get handles GET /api/v1/tasks/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	var task model.Task
	if err := h.db.Preload("Assignee").First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("task not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load task", err))
		return
	}

	httpx.OK(c, task)
}

// createRequest is the task creation payload
type createRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	Tags        []string `json:"tags"`
	DependsOn   []int    `json:"dependsOn"`
	AssigneeID  *int     `json:"assigneeId"`
}

// Create handles POST /api/v1/tasks. New tasks without an explicit assignee
// go through keyword matching against the live roster.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("title is required"))
		return
	}

	task := model.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatusTodo,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
	}
	if len(req.Tags) > 0 {
		raw, err := json.Marshal(req.Tags)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid tags"))
			return
		}
		task.Tags = datatypes.JSON(raw)
	}
	if len(req.DependsOn) > 0 {
		raw, err := json.Marshal(req.DependsOn)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid dependsOn"))
			return
		}
		task.DependsOn = datatypes.JSON(raw)
	}

	if task.AssigneeID == nil {
		assigneeID, err := h.resolver.ResolveAssignee(req.Tags, req.Description)
		if err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to resolve assignee", err))
			return
		}
		task.AssigneeID = assigneeID
	}

	if err := h.db.Create(&task).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create task", err))
		return
	}

	httpx.OK(c, task)
}

// Assign handles POST /api/v1/tasks/:id/assign. With reassign=true an
// existing assignee is replaced when the keywords now match someone else.
func (h *Handler) Assign(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}
	reassign := c.Query("reassign") == "true"

	var task model.Task
	if err := h.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("task not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load task", err))
		return
	}

	assigneeID, err := h.resolver.AssignTask(&task, reassign)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to assign task", err))
		return
	}

	httpx.OK(c, gin.H{
		"taskId":     task.ID,
		"assigneeId": assigneeID,
	})
}

// resultRequest is the agent result callback payload
type resultRequest struct {
	Status     string  `json:"status" binding:"required"`
	Output     string  `json:"output"`
	TokensUsed int64   `json:"tokensUsed"`
	CostUSD    float64 `json:"costUSD"`
	DurationMS int64   `json:"durationMS"`
}

// AddResult handles POST /api/v1/tasks/:id/results. Results are append only,
// the newest row is the snapshot auto review judges.
func (h *Handler) AddResult(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("status is required"))
		return
	}
	status := model.TaskResultStatus(req.Status)
	if status != model.ResultStatusCompleted && status != model.ResultStatusFailed {
		httpx.FailErr(c, httpx.ErrParamInvalid("status must be completed or failed"))
		return
	}

	var task model.Task
	if err := h.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("task not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load task", err))
		return
	}

	result := model.TaskResult{
		TaskID:     task.ID,
		Status:     status,
		Output:     req.Output,
		TokensUsed: req.TokensUsed,
		CostUSD:    req.CostUSD,
		DurationMS: req.DurationMS,
	}
	if err := h.db.Create(&result).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to save task result", err))
		return
	}

	httpx.OK(c, result)
}

// AutoReview handles POST /api/v1/tasks/:id/auto-review. It records a
// verdict for the latest completed result without touching the task.
func (h *Handler) AutoReview(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	verdict, err := h.engine.AutoReview(id)
	if err != nil {
		h.failReview(c, err)
		return
	}

	httpx.OK(c, verdict)
}

// AutoReviewAndApprove handles PUT /api/v1/tasks/:id/auto-review. It reviews
// the latest result and immediately acts on the verdict.
func (h *Handler) AutoReviewAndApprove(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	if _, err := h.engine.AutoReview(id); err != nil {
		h.failReview(c, err)
		return
	}

	task, err := h.engine.ProcessAutoReview(id)
	if err != nil {
		h.failReview(c, err)
		return
	}

	httpx.OK(c, task)
}

// Approve handles POST /api/v1/tasks/:id/approve. It acts on the most recent
// recorded verdict without re-running the checks.
func (h *Handler) Approve(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	task, err := h.engine.ProcessAutoReview(id)
	if err != nil {
		h.failReview(c, err)
		return
	}

	httpx.OK(c, task)
}

func (h *Handler) failReview(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		httpx.FailErr(c, httpx.ErrNotFound("task not found"))
	case errors.Is(err, review.ErrNotReviewable):
		httpx.FailErr(c, httpx.ErrNotReviewable(err.Error()))
	case errors.Is(err, review.ErrStaleVerdict):
		httpx.FailErr(c, httpx.ErrStateConflict("verdict is stale, re-run auto review"))
	default:
		httpx.FailErr(c, httpx.ErrInternalError("auto review failed", err))
	}
}
