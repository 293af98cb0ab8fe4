package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulseboard-realtime/internal/auth"
	"github.com/pulseboard-realtime/internal/config"
	realtimehttp "github.com/pulseboard-realtime/internal/http"
	"github.com/pulseboard-realtime/internal/presence"
	"github.com/pulseboard-realtime/internal/realtime"
	"github.com/pulseboard-realtime/internal/validation"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := presence.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)

	var identify *auth.Service
	if cfg.IdentifySecret != "" {
		identify = auth.NewService(cfg.IdentifySecret, cfg.IdentifyTTL)
	} else {
		logger.Warn("IDENTIFY_SECRET unset, trusting raw user ids on identify")
	}
	if cfg.TriggerToken == "" {
		logger.Warn("TRIGGER_TOKEN unset, trigger endpoint trusts network placement only")
	}

	handler := realtimehttp.NewHandler(dispatcher, identify, validation.New(), cfg, logger)
	router := realtimehttp.NewRouter(realtimehttp.RouterDeps{Handler: handler, Config: cfg})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		logger.Info("realtime dispatcher listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")
	dispatcher.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// ensure gin uses release mode in production
func init() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
