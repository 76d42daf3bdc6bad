package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/protean-labs/protean/internal/entities"
	"github.com/protean-labs/protean/internal/repositories"
)

// === Shared helper functions for all handlers ===

// respondError maps a service error onto the HTTP surface: declaration and
// route failures are unprocessable, missing records are 404, table and model
// load failures are internal.
func respondError(c *gin.Context, err error) {
	var validationErr *entities.ValidationError
	var routeErr *entities.RouteError
	var tableErr *entities.TableOperationError
	var loadErr *entities.ModelLoadError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{validationErr.Message}})
	case errors.As(err, &routeErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{routeErr.Message}})
	case errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.As(err, &tableErr), errors.As(err, &loadErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// pathID parses a numeric path parameter, writing the 404 response itself on
// failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return 0, false
	}
	return id, true
}

// organizationID parses the tenant path parameter.
func organizationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("organization_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"organization id is required"}})
		return 0, false
	}
	return id, true
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
