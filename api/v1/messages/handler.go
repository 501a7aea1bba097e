package messages

import (
	"errors"
	"strconv"

	"go_crew/internal/httpx"
	"go_crew/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles message related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new message handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /api/v1/messages
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	agentParam := c.Query("agentId")
	unreadOnly := c.Query("unread") == "true"

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.Model(&model.Message{})
	if agentParam != "" {
		agentID, err := strconv.Atoi(agentParam)
		if err != nil || agentID <= 0 {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid agentId"))
			return
		}
		query = query.Where("to_agent_id = ?", agentID)
	}
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count messages", err))
		return
	}

	var list []model.Message
	err := query.
		Order("created_at ASC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&list).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list messages", err))
		return
	}

	httpx.OKItems(c, list, total, page, pageSize)
}

// MarkRead handles PUT /api/v1/messages/:id/read. The read flag only flips
// false to true, marking an already-read message again is a no-op.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid message id"))
		return
	}

	var msg model.Message
	if err := h.db.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("message not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load message", err))
		return
	}

	if !msg.Read {
		if err := h.db.Model(&msg).Update("read", true).Error; err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to mark message read", err))
			return
		}
		msg.Read = true
	}

	httpx.OK(c, msg)
}
