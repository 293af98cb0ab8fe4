package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pulseboard-realtime/internal/auth"
	"github.com/pulseboard-realtime/internal/config"
	"github.com/pulseboard-realtime/internal/metrics"
	"github.com/pulseboard-realtime/internal/realtime"
	"github.com/pulseboard-realtime/internal/validation"
)

type Handler struct {
	dispatcher *realtime.Dispatcher
	identify   *auth.Service // nil when identify tokens are not enforced
	validate   *validation.Validator
	cfg        config.Config
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(dispatcher *realtime.Dispatcher, identify *auth.Service, validate *validation.Validator, cfg config.Config, log *zap.Logger) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		identify:   identify,
		validate:   validate,
		cfg:        cfg,
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.AllowedOrigin == "" || cfg.AllowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == cfg.AllowedOrigin
		},
	}
	return h
}

// TriggerRequest is the body the web tier POSTs to ask for a fan-out.
type TriggerRequest struct {
	Event        string          `json:"event" validate:"required"`
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
	Broadcast    bool            `json:"broadcast"`
}

// Trigger accepts an internal fan-out request. The 200 acknowledges receipt
// only: delivery is fire-and-forget and a target with zero live connections
// still succeeds. Broadcast wins when both broadcast and targetUserId are set.
func (h *Handler) Trigger(ctx *gin.Context) {
	var req TriggerRequest
	if !h.validate.BindJSON(ctx, &req) {
		return
	}
	if req.TargetUserID == "" && !req.Broadcast {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "either targetUserId or broadcast is required"})
		return
	}

	if req.Broadcast {
		h.dispatcher.Broadcast(req.Event, req.Payload)
		metrics.TriggersAccepted.WithLabelValues("broadcast").Inc()
	} else {
		h.dispatcher.DispatchToUser(req.Event, req.TargetUserID, req.Payload)
		metrics.TriggersAccepted.WithLabelValues("targeted").Inc()
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

// Websocket upgrades the request and runs the connection until it closes.
// The connection starts unassociated; the client sends an identify frame to
// bind it to a user.
func (h *Handler) Websocket(ctx *gin.Context) {
	ws, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := realtime.NewClient(uuid.NewString(), ws, h.dispatcher, h.identify, h.log, h.cfg.SendBuffer)
	h.dispatcher.Attach(client)
	client.Run()
}

// Stats reports live presence totals for the dashboard admin console.
func (h *Handler) Stats(ctx *gin.Context) {
	conns, users := h.dispatcher.Counts()
	ctx.JSON(http.StatusOK, gin.H{
		"connections":     conns,
		"identifiedUsers": users,
	})
}
