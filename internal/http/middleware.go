package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cms-backend/internal/auth"
)

const claimKey = "auth.claim"

// requireAuth rejects requests without a valid bearer token and stores the
// verified claim for the handlers.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, err := h.guard.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(claimKey, claim)
		c.Next()
	}
}

func claimFrom(c *gin.Context) (auth.Claim, bool) {
	v, ok := c.Get(claimKey)
	if !ok {
		return auth.Claim{}, false
	}
	claim, ok := v.(auth.Claim)
	return claim, ok
}

func mustClaim(c *gin.Context) auth.Claim {
	claim, _ := claimFrom(c)
	return claim
}

// limitLogin throttles login attempts per client address and clears the
// client's count once a login succeeds. Limiter errors fail open.
func (h *Handler) limitLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.login.Limiter == nil || h.login.Max <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := loginAttemptKey(c.ClientIP())

		decision, err := h.login.Limiter.Allow(ctx, key, h.login.Max, h.login.Window)
		if err != nil {
			h.logger.WithError(err).Warn("login rate limiter unavailable")
			c.Next()
			return
		}
		if !decision.Allowed {
			if !decision.ResetAt.IsZero() {
				retryAfter := max(int64(time.Until(decision.ResetAt).Seconds()), 0)
				c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			if err := h.login.Limiter.Reset(ctx, key); err != nil {
				h.logger.WithError(err).Warn("reset login attempts")
			}
		}
	}
}

func loginAttemptKey(clientIP string) string {
	return "login:" + clientIP
}
