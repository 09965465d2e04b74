package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"prediction-engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrInvalidSide),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrTradeTooSmall),
		errors.Is(err, models.ErrInsufficientShares),
		errors.Is(err, models.ErrInvalidMarket),
		errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		c.JSON(status, gin.H{"error": "internal error", "code": models.ErrorCode(err)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": models.ErrorCode(err)})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", models.ErrInvalidRequest, err.Error()))
		return false
	}
	return true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, fmt.Errorf("%w: bad prediction id %q", models.ErrInvalidRequest, c.Param("id")))
		return 0, false
	}
	return uint(id), true
}
