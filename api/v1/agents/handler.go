package agents

import (
	"strconv"

	"go_crew/internal/httpx"
	"go_crew/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles agent related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new agent handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /api/v1/agents
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	status := c.Query("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.Model(&model.Agent{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count agents", err))
		return
	}

	var agents []model.Agent
	err := query.
		Order("created_at ASC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&agents).Error
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list agents", err))
		return
	}

	httpx.OKItems(c, agents, total, page, pageSize)
}

// Get handles GET /api/v1/agents/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid agent id"))
		return
	}

	var agent model.Agent
	if err := h.db.First(&agent, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			httpx.FailErr(c, httpx.ErrNotFound("agent not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load agent", err))
		return
	}

	httpx.OK(c, agent)
}

// createRequest is the agent creation payload
type createRequest struct {
	Name     string `json:"name" binding:"required"`
	Codename string `json:"codename" binding:"required"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// Create handles POST /api/v1/agents
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("name and codename are required"))
		return
	}

	agent := model.Agent{
		Name:     req.Name,
		Codename: req.Codename,
		Host:     req.Host,
		Port:     req.Port,
		Status:   model.AgentStatusOffline,
	}
	if agent.Port == 0 {
		agent.Port = 8090
	}

	if err := h.db.Create(&agent).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create agent", err))
		return
	}

	httpx.OK(c, agent)
}
