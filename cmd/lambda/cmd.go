package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/GregMSThompson/agent-bridge/internal/bootstrap"
	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/handlers"
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

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.AgentSvc = agentSvc

	lambda.Start(handlers.NewInvokeHandler(deps).Handle)
}
