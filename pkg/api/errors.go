package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/store"
)

// respondError maps store errors onto HTTP status codes. Anything unmapped is
// a 500 with the error text preserved.
func respondError(c *gin.Context, err error) {
	switch {
	case store.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, store.ErrNotCancellable),
		errors.Is(err, store.ErrActiveConfig):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
