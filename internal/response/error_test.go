package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

func TestHandleErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errs.NewNotFoundError("no history"), http.StatusNotFound, "not_found"},
		{"validation", errs.NewValidationError("question", "question is required"), http.StatusBadRequest, "invalid_input"},
		{"wrapped validation", fmt.Errorf("ask: %w", errs.NewValidationError("sessionId", "x")), http.StatusBadRequest, "invalid_input"},
		{"transport permanent", errs.NewTransportError(403, "forbidden", nil), http.StatusBadGateway, "agent_unavailable"},
		{"transport transient", errs.NewTransportError(503, "busy", nil), http.StatusServiceUnavailable, "agent_unavailable"},
		{"external", errs.NewExternalServiceError("aws-credentials", "x", false, nil), http.StatusBadGateway, "service_unavailable"},
		{"external wrapping not found", errs.NewExternalServiceError("aws-credentials", "x", false, errs.NewNotFoundError("secret aws-creds not found")), http.StatusBadGateway, "service_unavailable"},
		{"external wrapping validation", errs.NewExternalServiceError("aws-credentials", "x", true, errs.NewValidationError("secret", "x")), http.StatusServiceUnavailable, "service_unavailable"},
		{"transport wrapping validation", errs.NewTransportError(0, "agent request failed", errs.NewValidationError("f", "x")), http.StatusServiceUnavailable, "agent_unavailable"},
		{"database", errs.NewDatabaseError("read", "x", nil), http.StatusInternalServerError, "internal_error"},
		{"encryption", errs.NewEncryptionError("x", nil), http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	h := New(logger.NewTestLogger())
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		h.HandleError(rr, req, tc.err)

		if rr.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rr.Code, tc.status)
		}
		var body ErrorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode body: %v", tc.name, err)
		}
		if body.Code != tc.code {
			t.Fatalf("%s: code = %s, want %s", tc.name, body.Code, tc.code)
		}
	}
}

func TestWriteSuccessEnvelope(t *testing.T) {
	h := New(logger.NewTestLogger())
	rr := httptest.NewRecorder()

	h.WriteSuccess(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, map[string]string{"k": "v"})

	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("missing content type")
	}
	if rr.Body.String() != "{\"success\":true,\"data\":{\"k\":\"v\"}}\n" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestHandleErrorHidesWrappedCause(t *testing.T) {
	h := New(logger.NewTestLogger())
	rr := httptest.NewRecorder()

	err := errs.NewExternalServiceError("aws-credentials", "failed to resolve aws credentials", false,
		errs.NewNotFoundError("secret aws-creds not found"))
	h.HandleError(rr, httptest.NewRequest(http.MethodPost, "/agent/query", nil), err)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "aws-creds") {
		t.Fatalf("secret id leaked into body: %s", rr.Body.String())
	}
}
