package auth

import (
	"time"

	"go_crew/internal/auth"
	"go_crew/internal/config"
	"go_crew/internal/httpx"
	"go_crew/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// loginRequest is the login payload
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler handles POST /api/v1/auth/login
func LoginHandler(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("username and password are required"))
			return
		}

		var user model.User
		if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid username or password"))
			return
		}

		if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
			httpx.FailErr(c, httpx.ErrUnauthorized("invalid username or password"))
			return
		}

		expireAt := time.Now().Add(time.Duration(cfg.JWT.ExpireMinutes) * time.Minute)
		token, err := auth.GenerateToken(user.ID, user.Username, user.Role, expireAt, cfg.JWT.Issuer)
		if err != nil {
			httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
			return
		}

		httpx.OK(c, gin.H{
			"token":    token,
			"expireAt": expireAt.Unix(),
			"username": user.Username,
			"role":     user.Role,
		})
	}
}
