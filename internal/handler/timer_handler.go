package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
	"github.com/tiagofur/ordo-todo-sub018/internal/service"
)

const apiSurfaceID = "api"

type TimerHandler struct {
	timer *service.TimerService
	hub   *broadcast.Broadcaster
}

func NewTimerHandler(timer *service.TimerService, hub *broadcast.Broadcaster) *TimerHandler {
	return &TimerHandler{timer: timer, hub: hub}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.timer.Snapshot()})
}

func (h *TimerHandler) Command(c *gin.Context) {
	var cmd model.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeInvalidJSON(c)
		return
	}

	surfaceID := cmd.SurfaceID
	if surfaceID == "" {
		surfaceID = apiSurfaceID
	}
	dispatch(c, h.hub, surfaceID, cmd)
}

func (h *TimerHandler) UpdateConfig(c *gin.Context) {
	var config model.TimerConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		writeInvalidJSON(c)
		return
	}

	state, err := h.timer.UpdateConfig(c.Request.Context(), config)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func dispatch(c *gin.Context, hub *broadcast.Broadcaster, surfaceID string, cmd model.Command) {
	state, err := hub.Dispatch(c.Request.Context(), surfaceID, cmd)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
