package v1

import (
	"go_crew/api/v1/agents"
	"go_crew/api/v1/auth"
	"go_crew/api/v1/heartbeat"
	"go_crew/api/v1/messages"
	"go_crew/api/v1/middleware"
	"go_crew/api/v1/tasks"
	"go_crew/internal/assign"
	"go_crew/internal/config"
	"go_crew/internal/httpx"
	"go_crew/internal/review"
	"go_crew/internal/scheduler"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the long-lived components the handlers operate on
type Deps struct {
	Engine   *review.Engine
	Resolver *assign.Resolver
	Worker   *scheduler.Worker
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, db *gorm.DB, cfg *config.Config, deps Deps) {
	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", auth.LoginHandler(db, cfg))
		}

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", meHandler)

			// Heartbeat routes
			heartbeatHandler := heartbeat.NewHandler(deps.Worker)
			protected.POST("/heartbeat-cycle", heartbeatHandler.Cycle)

			// Agent routes
			agentsHandler := agents.NewHandler(db)
			agentsGroup := protected.Group("/agents")
			{
				agentsGroup.GET("", agentsHandler.List)
				agentsGroup.GET("/:id", agentsHandler.Get)
				agentsGroup.POST("", agentsHandler.Create)
			}

			// Task routes
			tasksHandler := tasks.NewHandler(db, deps.Engine, deps.Resolver)
			tasksGroup := protected.Group("/tasks")
			{
				tasksGroup.GET("", tasksHandler.List)
				tasksGroup.GET("/:id", tasksHandler.Get)
				tasksGroup.POST("", tasksHandler.Create)
				tasksGroup.POST("/:id/assign", tasksHandler.Assign)
				tasksGroup.POST("/:id/results", tasksHandler.AddResult)
				tasksGroup.POST("/:id/auto-review", tasksHandler.AutoReview)
				tasksGroup.PUT("/:id/auto-review", tasksHandler.AutoReviewAndApprove)
				tasksGroup.POST("/:id/approve", tasksHandler.Approve)
			}

			// Message routes
			messagesHandler := messages.NewHandler(db)
			messagesGroup := protected.Group("/messages")
			{
				messagesGroup.GET("", messagesHandler.List)
				messagesGroup.PUT("/:id/read", messagesHandler.MarkRead)
			}
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}

// meHandler returns current user information
func meHandler(c *gin.Context) {
	uid, _ := c.Get("uid")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": username,
		"role":     role,
	})
}
