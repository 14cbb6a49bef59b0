package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiagofur/ordo-todo-sub018/internal/handler"
	"github.com/tiagofur/ordo-todo-sub018/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Timer   *handler.TimerHandler
	Surface *handler.SurfaceHandler
	Sync    *handler.SyncHandler
	Session *handler.SessionHandler
}

type Options struct {
	CORSOrigins       []string
	SurfaceRatePerSec float64
	SurfaceRateBurst  int
}

// New mounts the local timer API (timer, surfaces, sync) and the session
// repository API. Only the session repository requires a bearer token.
func New(tokens middleware.TokenParser, h Handlers, opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(opts.CORSOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	timer := api.Group("/timer")
	timer.GET("/state", h.Timer.GetState)
	timer.POST("/commands", h.Timer.Command)
	timer.PUT("/config", h.Timer.UpdateConfig)

	surfaces := api.Group("/surfaces")
	surfaces.GET("", h.Surface.List)
	surfaces.GET("/:surfaceId/stream", h.Surface.Stream)
	surfaces.POST(
		"/:surfaceId/commands",
		middleware.RateLimit(opts.SurfaceRatePerSec, opts.SurfaceRateBurst, middleware.SurfaceKey),
		h.Surface.Command,
	)

	sync := api.Group("/sync")
	sync.GET("/status", h.Sync.Status)
	sync.PUT("/connectivity", h.Sync.SetConnectivity)
	sync.POST("/drain", h.Sync.Drain)
	sync.GET("/dead-letters", h.Sync.DeadLetters)
	sync.POST("/dead-letters/:id/retry", h.Sync.RetryDeadLetter)

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)

	sessions := api.Group("/sessions")
	sessions.Use(middleware.Auth(tokens))
	sessions.POST("", h.Session.Record)
	sessions.GET("", h.Session.History)

	return engine
}
