package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
)

// statusFor maps service error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Warn(msg, zap.Int("status", status), zap.Error(err))
	}

	body := gin.H{"error": err.Error()}
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["material"] = stockErr.Name
		body["available"] = stockErr.Available
		body["requested"] = stockErr.Requested
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// parseOptionalDate accepts an RFC 3339 timestamp or a YYYY-MM-DD day.
func parseOptionalDate(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	day, err := models.ParseDay(value, loc)
	if err != nil {
		return nil, err
	}
	return &day, nil
}
