package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/internal/handlers"
	"github.com/GregMSThompson/agent-bridge/internal/middleware"
	"github.com/GregMSThompson/agent-bridge/internal/observability"
	"github.com/GregMSThompson/agent-bridge/internal/response"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

type echoAgent struct{}

func (echoAgent) Ask(ctx context.Context, owner string, req dto.AgentRequest) (dto.AgentAnswer, error) {
	return dto.AgentAnswer{SessionID: req.SessionID, Answer: "echo: " + req.Question}, nil
}

func (echoAgent) History(ctx context.Context, owner, sessionID string, limit *int) (dto.AgentHistoryResponse, error) {
	return dto.AgentHistoryResponse{SessionID: sessionID, Messages: []dto.AgentMessage{}}, nil
}

func newTestRouter() http.Handler {
	log := logger.NewTestLogger()
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg).ObserveInvocation(0, nil)

	deps := &handlers.Deps{Log: log, ResponseHandler: response.New(log), AgentSvc: echoAgent{}}
	return NewRouter(deps, middleware.NewMiddleware(nil), reg)
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		method, path, body string
		status             int
		contains           string
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK, "ok"},
		{http.MethodGet, "/metrics", "", http.StatusOK, "agent_invocations_total"},
		{http.MethodPost, "/agent/query", `{"sessionId":"s1","question":"hi"}`, http.StatusOK, `"trace_data":"echo: hi"`},
		{http.MethodGet, "/agent/sessions/s1/messages", "", http.StatusOK, `"sessionId":"s1"`},
		{http.MethodGet, "/agent/query", "", http.StatusMethodNotAllowed, ""},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))

		if rr.Code != tc.status {
			t.Fatalf("%s %s: status = %d, want %d", tc.method, tc.path, rr.Code, tc.status)
		}
		if !strings.Contains(rr.Body.String(), tc.contains) {
			t.Fatalf("%s %s: body %q missing %q", tc.method, tc.path, rr.Body.String(), tc.contains)
		}
	}
}
