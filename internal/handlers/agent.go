package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/internal/errs"
	"github.com/GregMSThompson/agent-bridge/internal/middleware"
	"github.com/GregMSThompson/agent-bridge/internal/response"
)

type agentService interface {
	Ask(ctx context.Context, owner string, req dto.AgentRequest) (dto.AgentAnswer, error)
	History(ctx context.Context, owner, sessionID string, limit *int) (dto.AgentHistoryResponse, error)
}

type agentHandlers struct {
	ResponseHandler response.ResponseHandler
	AgentSvc        agentService
}

func NewAgentHandlers(deps *Deps) *agentHandlers {
	return &agentHandlers{
		ResponseHandler: deps.ResponseHandler,
		AgentSvc:        deps.AgentSvc,
	}
}

func (h *agentHandlers) AgentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/query", h.Query)
	r.Get("/sessions/{sessionId}/messages", h.Messages)
	return r
}

func (h *agentHandlers) Query(w http.ResponseWriter, r *http.Request) {
	var body dto.AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("body", "request body must be a JSON object"))
		return
	}

	resp, err := h.AgentSvc.Ask(r.Context(), middleware.Owner(r.Context()), body)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dto.NewAgentQueryResponse(resp))
}

func (h *agentHandlers) Messages(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.ResponseHandler.HandleError(w, r, errs.NewValidationError("limit", "limit must be an integer"))
			return
		}
		limit = &n
	}

	resp, err := h.AgentSvc.History(r.Context(), middleware.Owner(r.Context()), chi.URLParam(r, "sessionId"), limit)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, resp)
}
