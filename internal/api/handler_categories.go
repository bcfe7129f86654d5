package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/store"
)

// CategoriesHandler serves the seeded category definitions.
type CategoriesHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCategoriesHandler wires the categories endpoint.
func NewCategoriesHandler(s *store.Store, logger *slog.Logger) *CategoriesHandler {
	return &CategoriesHandler{store: s, logger: logging.WithComponent(logger, "api")}
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		h.logger.Error("listing categories failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
