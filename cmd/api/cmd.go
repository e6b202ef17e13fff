package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GregMSThompson/agent-bridge/internal/bootstrap"
	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/handlers"
	"github.com/GregMSThompson/agent-bridge/internal/middleware"
	"github.com/GregMSThompson/agent-bridge/internal/response"
	"github.com/GregMSThompson/agent-bridge/internal/router"
	"github.com/GregMSThompson/agent-bridge/internal/services"
)

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// bootstrap
	cfg, err := config.New()
	exitOnError("config failed", err, slog.Default())
	bs, err := bootstrap.Run(cfg)
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	// services
	agentSvc := services.NewAgentService(bs.AgentAdapter, bs.Decoder, bs.History, bs.Metrics, cfg.HistoryTTL, cfg.HistoryLimit)

	// response handler
	rh := response.New(bs.Log)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.AgentSvc = agentSvc

	// router
	// a nil *auth.Client must not reach the verifier interface
	var auth *middleware.Middleware
	if bs.Firebase != nil {
		auth = middleware.NewMiddleware(bs.Firebase)
	} else {
		auth = middleware.NewMiddleware(nil)
	}
	r := router.NewRouter(deps, auth, bs.Registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		bs.Log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			bs.Log.Error("server start failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		bs.Log.Error("server shutdown failed", "error", err)
	}
	bs.Log.Info("server stopped")
}
