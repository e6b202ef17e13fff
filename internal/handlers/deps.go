package handlers

import (
	"log/slog"

	"github.com/GregMSThompson/agent-bridge/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	AgentSvc        agentService
}
