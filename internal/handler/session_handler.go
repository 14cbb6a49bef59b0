package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/middleware"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/remote"
	"github.com/tiagofur/ordo-todo-sub018/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Record(c *gin.Context) {
	var record model.SessionRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		writeInvalidJSON(c)
		return
	}

	session, created, apiErr := h.sessions.Record(
		c.Request.Context(),
		middleware.UserID(c),
		c.GetHeader(remote.IdempotencyHeader),
		record,
	)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"session": session})
}

func (h *SessionHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, apperrors.BadRequest("invalid_limit", "limit must be between 1 and 200"))
			return
		}
		if parsed == 0 {
			parsed = -1
		}
		limit = parsed
	}

	sessions, apiErr := h.sessions.History(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
