package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cms-backend/internal/auth"
	"cms-backend/internal/ratelimit"
	"cms-backend/internal/service"
)

// Services groups the domain services the handlers call into.
type Services struct {
	Users    service.UserService
	Avatars  service.AvatarService
	Posts    service.PostService
	Comments service.CommentService
}

// LoginLimit configures per-client throttling of login attempts.
type LoginLimit struct {
	Limiter ratelimit.Limiter
	Max     int
	Window  time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	svc    Services
	guard  *auth.Guard
	login  LoginLimit
	logger *logrus.Logger
}

func NewHandler(svc Services, guard *auth.Guard, login LoginLimit, logger *logrus.Logger) *Handler {
	return &Handler{
		svc:    svc,
		guard:  guard,
		login:  login,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), h.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.limitLogin(), h.loginUser)
	}

	users := router.Group("/admin/users")
	{
		users.GET("/:userId/avatars/:avatarId", h.getUserAvatarByID)
		users.GET("/:userId/avatar", h.getUserActiveAvatar)

		profile := users.Group("/profile", h.requireAuth())
		profile.GET("", h.getProfile)
		profile.PUT("/email", h.updateEmail)
		profile.DELETE("/email", h.removeEmail)
		profile.PUT("/password", h.changePassword)
		profile.POST("/avatar", h.addAvatar)
		profile.PUT("/avatar/active", h.setActiveAvatar)
		profile.DELETE("/avatar/:avatarId", h.deleteAvatar)
	}

	posts := router.Group("/posts")
	{
		posts.GET("", h.listPosts)
		posts.GET("/:id", h.getPost)
		posts.POST("", h.requireAuth(), h.createPost)
		posts.PUT("/:id", h.requireAuth(), h.updatePost)
		posts.DELETE("/:id", h.requireAuth(), h.deletePost)

		posts.GET("/:id/comments", h.listComments)
		posts.POST("/:id/comments", h.requireAuth(), h.createComment)
		posts.DELETE("/:id/comments/:commentId", h.requireAuth(), h.deleteComment)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, x-user-id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs one line per request. Bodies and headers are never logged.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := h.logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if claim, ok := claimFrom(c); ok {
			entry = entry.WithField("user_id", claim.UserID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

// bindJSON decodes the request body into dst. An empty body leaves dst zeroed.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}
