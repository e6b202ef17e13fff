package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/internal/errs"
	"github.com/GregMSThompson/agent-bridge/internal/middleware"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

// InvokeHandler serves the function-style entry point. The event is the
// request object itself and the reply is a status/body envelope whose body
// is a JSON document.
type InvokeHandler struct {
	Log      *slog.Logger
	AgentSvc agentService
}

func NewInvokeHandler(deps *Deps) *InvokeHandler {
	return &InvokeHandler{Log: deps.Log, AgentSvc: deps.AgentSvc}
}

func (h *InvokeHandler) Handle(ctx context.Context, req dto.AgentRequest) (dto.InvokeResponse, error) {
	log := h.Log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log = log.With("request_id", lc.AwsRequestID)
	}
	ctx = logger.ToContext(ctx, log)

	answer, err := h.AgentSvc.Ask(ctx, middleware.AnonymousOwner, req)
	if err != nil {
		status := http.StatusInternalServerError
		var ve *errs.ValidationError
		if errs.IsCallerError(err) && errors.As(err, &ve) {
			status = http.StatusBadRequest
		}
		log.Warn("invocation failed", "status", status, "error", err)
		return envelope(status, dto.InvokeErrorBody{Error: err.Error()})
	}

	return envelope(http.StatusOK, dto.NewAgentQueryResponse(answer))
}

func envelope(status int, body any) (dto.InvokeResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return dto.InvokeResponse{}, err
	}
	return dto.InvokeResponse{StatusCode: status, Body: string(b)}, nil
}
