package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/service"
	"github.com/tiagofur/ordo-todo-sub018/internal/syncqueue"
	"github.com/tiagofur/ordo-todo-sub018/internal/timer"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "internal server error",
			},
		})
		return
	}

	errorBody := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		errorBody["details"] = apiErr.Details
	}

	c.JSON(apiErr.Status, gin.H{
		"error": errorBody,
	})
}

func writeInvalidJSON(c *gin.Context) {
	writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
}

// toAPIError maps engine and queue errors onto the HTTP error envelope.
func toAPIError(err error) *apperrors.APIError {
	if apiErr, ok := apperrors.As(err); ok {
		return apiErr
	}
	switch {
	case errors.Is(err, broadcast.ErrUnknownCommand):
		return apperrors.BadRequest("invalid_command", "type must be start, pause, resume, skip or stop")
	case errors.Is(err, model.ErrInvalidConfig):
		return apperrors.BadRequest("invalid_config", err.Error())
	case errors.Is(err, timer.ErrSessionActive):
		return apperrors.Conflict("session_active", "config can only change while the timer is idle", nil)
	case errors.Is(err, syncqueue.ErrNotFound):
		return apperrors.NotFound("dead_letter_not_found", "dead letter not found")
	case errors.Is(err, service.ErrClosed), errors.Is(err, broadcast.ErrNoHandler):
		return apperrors.Unavailable("timer_unavailable", "timer is shutting down")
	default:
		return apperrors.Internal("")
	}
}
