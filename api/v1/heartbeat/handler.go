package heartbeat

import (
	"go_crew/internal/httpx"
	"go_crew/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// Handler triggers heartbeat cycles on demand
type Handler struct {
	worker *scheduler.Worker
}

// NewHandler creates a new heartbeat handler
func NewHandler(worker *scheduler.Worker) *Handler {
	return &Handler{worker: worker}
}

// Cycle handles POST /api/v1/heartbeat-cycle. It runs one full scheduler
// pass: the first agent is probed inline, the rest are staggered onto their
// timers and reported as scheduled.
func (h *Handler) Cycle(c *gin.Context) {
	outcomes, err := h.worker.RunCycle()
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("heartbeat cycle failed", err))
		return
	}

	httpx.OK(c, gin.H{
		"agents":   len(outcomes),
		"outcomes": outcomes,
	})
}
