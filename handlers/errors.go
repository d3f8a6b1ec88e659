package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"quizdeck/models"

	"github.com/gin-gonic/gin"
)

// respondError maps service sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message so internals never leak.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyAnswered):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrCodeExhausted):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, models.ErrQuizNotPublished),
		errors.Is(err, models.ErrQuizEmpty),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrSessionNotActive),
		errors.Is(err, models.ErrSessionExpired),
		errors.Is(err, models.ErrNameRequired),
		errors.Is(err, models.ErrNameTooLong),
		errors.Is(err, models.ErrMustJoinFirst),
		errors.Is(err, models.ErrAttemptInProgress),
		errors.Is(err, models.ErrAttemptCompleted),
		errors.Is(err, models.ErrInvalidSelection):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return 0, false
	}
	return uint(id), true
}
