package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiagofur/ordo-todo-sub018/internal/syncqueue"
)

type SyncHandler struct {
	queue *syncqueue.Queue
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

func NewSyncHandler(queue *syncqueue.Queue) *SyncHandler {
	return &SyncHandler{queue: queue}
}

func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.queue.Status(c.Request.Context())
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync": status})
}

func (h *SyncHandler) SetConnectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		writeInvalidJSON(c)
		return
	}

	h.queue.SetOnline(*req.Online)
	h.Status(c)
}

// Drain runs a drain pass on the request goroutine. A pass already in
// flight makes this one report skipped.
func (h *SyncHandler) Drain(c *gin.Context) {
	result, err := h.queue.Drain(c.Request.Context())
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"drain": result})
}

func (h *SyncHandler) DeadLetters(c *gin.Context) {
	actions, err := h.queue.DeadLetters(c.Request.Context())
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deadLetters": actions})
}

func (h *SyncHandler) RetryDeadLetter(c *gin.Context) {
	action, err := h.queue.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"action": action})
}
