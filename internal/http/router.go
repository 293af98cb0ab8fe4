package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseboard-realtime/internal/config"
	"github.com/pulseboard-realtime/internal/http/middleware"
)

type RouterDeps struct {
	Handler *Handler
	Config  config.Config
}

// NewRouter wires Gin with the dispatcher's two surfaces: the public
// websocket endpoint and the internal trigger/stats endpoints.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if deps.Config.MaintenanceFlag != "" {
		r.Use(middleware.Maintenance(deps.Config.MaintenanceFlag))
	}

	internal := r.Group("/internal", middleware.InternalToken(deps.Config.TriggerToken))
	internal.POST("/trigger", deps.Handler.Trigger)
	internal.GET("/stats", deps.Handler.Stats)

	r.GET("/ws", deps.Handler.Websocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	return r
}
