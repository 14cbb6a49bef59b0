package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/model"
)

const heartbeatInterval = 15 * time.Second

// SurfaceHandler is the transport for UI surfaces: a server-sent event stream
// of full snapshots out, and commands in.
type SurfaceHandler struct {
	hub *broadcast.Broadcaster
}

func NewSurfaceHandler(hub *broadcast.Broadcaster) *SurfaceHandler {
	return &SurfaceHandler{hub: hub}
}

func (h *SurfaceHandler) Stream(c *gin.Context) {
	surfaceID := strings.TrimSpace(c.Param("surfaceId"))
	if surfaceID == "" {
		writeError(c, apperrors.BadRequest("invalid_surface", "surface id is required"))
		return
	}
	kind := model.SurfaceKind(c.DefaultQuery("kind", string(model.SurfaceMain)))
	if !kind.Valid() {
		writeError(c, apperrors.BadRequest("invalid_surface_kind", "kind must be main, floating, tray or notification"))
		return
	}

	sub := h.hub.Subscribe(surfaceID, kind)
	defer h.hub.Release(sub)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case env, ok := <-sub.Envelopes():
			if !ok {
				return false
			}
			c.SSEvent(string(env.Type), env)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

func (h *SurfaceHandler) Command(c *gin.Context) {
	var cmd model.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeInvalidJSON(c)
		return
	}
	dispatch(c, h.hub, c.Param("surfaceId"), cmd)
}

func (h *SurfaceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"surfaces": h.hub.Surfaces()})
}
