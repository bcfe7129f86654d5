package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cloudidian/mailsort/internal/auth"
)

const ctxUserID = "user_id"

// AuthMiddleware validates the bearer session token and stores the
// authenticated user id on the request context.
func AuthMiddleware(sessions *auth.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := sessions.Validate(token)
		if err != nil {
			status := http.StatusUnauthorized
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Next()
	}
}

// userID returns the authenticated user id set by AuthMiddleware.
func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// HTTPRecorder records request metrics. Implemented by
// instrumentation.Metrics.
type HTTPRecorder interface {
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// MetricsMiddleware records one metric sample per request, labeled by
// route template rather than raw path to keep cardinality bounded.
func MetricsMiddleware(recorder HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.RecordHTTPRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
