package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cloudidian/mailsort/internal/auth"
)

// NewRouter assembles the HTTP API. A nil recorder disables request
// metrics.
func NewRouter(authHandler *AuthHandler, jobs *JobsHandler, categories *CategoriesHandler, sessions *auth.SessionManager, recorder HTTPRecorder) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if recorder != nil {
		r.Use(MetricsMiddleware(recorder))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/auth/google/start", authHandler.Start)
	r.GET("/auth/google/callback", authHandler.Callback)

	protected := r.Group("/api")
	protected.Use(AuthMiddleware(sessions))
	{
		protected.POST("/jobs", jobs.Create)
		protected.GET("/jobs", jobs.List)
		protected.GET("/jobs/:id", jobs.Get)
		protected.DELETE("/jobs/:id", jobs.Cancel)
		protected.GET("/categories", categories.List)
	}

	return r
}
