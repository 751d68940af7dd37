package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gotrip/booking-backend/internal/models"
)

// respondError maps the engine's error taxonomy onto HTTP responses.
// ErrConcurrentModification is transient: the caller should retry the
// whole request, not just the coin step.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "FORBIDDEN"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, models.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "INVALID_STATE"})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "CONFLICT"})
	case errors.Is(err, models.ErrInsufficientCoins):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "INSUFFICIENT_COINS"})
	case errors.Is(err, models.ErrConcurrentModification):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
			"code":  "CONCURRENT_MODIFICATION",
			"retry": true,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
