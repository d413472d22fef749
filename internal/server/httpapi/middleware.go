package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/dmitrijs2005/voicegate/internal/common"
	"github.com/dmitrijs2005/voicegate/internal/server/auth"
	"github.com/dmitrijs2005/voicegate/internal/server/metrics"
	"github.com/dmitrijs2005/voicegate/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	userIDContextKey = "user_id"
	roleContextKey   = "role"
)

// authMiddleware verifies the bearer token and stores the caller's identity
// in the request context.
func authMiddleware(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AccessTokenHeaderName)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, common.ErrorUnauthorized)
			return
		}

		claims, err := auth.ParseToken(parts[1], secretKey)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(userIDContextKey, claims.UserID)
		c.Set(roleContextKey, claims.Role)
		c.Next()
	}
}

// adminOnly rejects callers whose token does not carry an admin role. It
// must run after authMiddleware.
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(roleContextKey)
		if role != models.RoleAdmin && role != models.RoleSuperadmin {
			abortWithError(c, common.ErrorUnauthorized)
			return
		}
		c.Next()
	}
}

func rateLimitMiddleware(rps float64) gin.HandlerFunc {
	lmt := tollbooth.NewLimiter(rps, nil)
	return func(c *gin.Context) {
		if httpError := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpError != nil {
			c.AbortWithStatusJSON(httpError.StatusCode, gin.H{"error": httpError.Message})
			return
		}
		c.Next()
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func currentUserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDContextKey)
	if id == "" {
		abortWithError(c, common.ErrorUnauthorized)
		return "", false
	}
	return id, true
}
