package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/GregMSThompson/agent-bridge/internal/config"
	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

type stubService struct {
	owner   string
	req     dto.AgentRequest
	limit   *int
	answer  dto.AgentAnswer
	history dto.AgentHistoryResponse
}

func (s *stubService) Ask(ctx context.Context, owner string, req dto.AgentRequest) (dto.AgentAnswer, error) {
	s.owner = owner
	s.req = req
	return s.answer, nil
}

func (s *stubService) History(ctx context.Context, owner, sessionID string, limit *int) (dto.AgentHistoryResponse, error) {
	s.owner = owner
	s.req.SessionID = sessionID
	s.limit = limit
	return s.history, nil
}

func stubBuild(svc *stubService, gotCfg **config.Config) buildFunc {
	return func(cmd *cobra.Command, cfg *config.Config) (*runtime, error) {
		if gotCfg != nil {
			*gotCfg = cfg
		}
		return &runtime{svc: svc, log: logger.NewTestLogger(), close: func() error { return nil }}, nil
	}
}

func run(t *testing.T, o *options, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(o)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDecodeFromStdin(t *testing.T) {
	out, errOut, err := run(t, &options{}, `x:message-type...bytes..."SGVsbG8="...`, "decode", "--trace")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out != "Hello\n" {
		t.Fatalf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "segment 1: bytes=true") || !strings.Contains(errOut, "mode=marker") {
		t.Fatalf("stderr missing trace: %q", errOut)
	}
}

func TestDecodeFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.bin")
	if err := os.WriteFile(path, []byte(`finalResponse":"{"text":"Hi there"}"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, &options{}, "", "decode", path, "--json")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	var doc dto.AgentQueryResponse
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if doc.TraceData != "Hi there" || len(doc.Response) == 0 {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, _, err := run(t, &options{}, "", "decode", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestAsk(t *testing.T) {
	svc := &stubService{answer: dto.AgentAnswer{Answer: "Hello", Trace: []string{"t1"}}}
	o := &options{build: stubBuild(svc, nil)}

	out, errOut, err := run(t, o, "", "ask", "--session", "s1", "--end-session", "--trace", "what", "is", "up")
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if out != "Hello\n" || !strings.Contains(errOut, "t1") {
		t.Fatalf("unexpected output %q / %q", out, errOut)
	}
	if svc.req.SessionID != "s1" || svc.req.Question != "what is up" || !bool(svc.req.EndSession) {
		t.Fatalf("unexpected request %+v", svc.req)
	}
	if svc.owner != "anonymous" {
		t.Fatalf("unexpected owner %q", svc.owner)
	}
}

func TestAskGeneratesSession(t *testing.T) {
	svc := &stubService{}
	_, errOut, err := run(t, &options{build: stubBuild(svc, nil)}, "", "ask", "hi")
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if len(svc.req.SessionID) != 36 || !strings.Contains(errOut, svc.req.SessionID) {
		t.Fatalf("expected generated session id to be printed, got %q / %q", svc.req.SessionID, errOut)
	}
}

func TestAskConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentctl.yaml")
	if err := os.WriteFile(path, []byte("agentId: FROMFILE\nlogLevel: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var cfg *config.Config
	_, _, err := run(t, &options{build: stubBuild(&stubService{}, &cfg)}, "",
		"--config", path, "--log-level", "debug", "--owner", "ops", "ask", "hi")
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if cfg.AgentID != "FROMFILE" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestHistoryBackendDefaultsToBadger(t *testing.T) {
	t.Setenv("HISTORYBACKEND", "")

	var cfg *config.Config
	if _, _, err := run(t, &options{build: stubBuild(&stubService{}, &cfg)}, "", "history", "--session", "s1"); err != nil {
		t.Fatalf("history error: %v", err)
	}
	if cfg.HistoryBackend != config.HistoryBadger {
		t.Fatalf("backend = %q, want %q", cfg.HistoryBackend, config.HistoryBadger)
	}
}

func TestHistoryBackendFromEnvironment(t *testing.T) {
	t.Setenv("HISTORYBACKEND", config.HistoryMemory)

	var cfg *config.Config
	if _, _, err := run(t, &options{build: stubBuild(&stubService{}, &cfg)}, "", "history", "--session", "s1"); err != nil {
		t.Fatalf("history error: %v", err)
	}
	if cfg.HistoryBackend != config.HistoryMemory {
		t.Fatalf("backend = %q, want %q", cfg.HistoryBackend, config.HistoryMemory)
	}
}

func TestHistoryBackendFromConfigFile(t *testing.T) {
	t.Setenv("HISTORYBACKEND", "")
	path := filepath.Join(t.TempDir(), "agentctl.yaml")
	if err := os.WriteFile(path, []byte("historyBackend: none\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var cfg *config.Config
	if _, _, err := run(t, &options{build: stubBuild(&stubService{}, &cfg)}, "", "--config", path, "history", "--session", "s1"); err != nil {
		t.Fatalf("history error: %v", err)
	}
	if cfg.HistoryBackend != config.HistoryNone {
		t.Fatalf("backend = %q, want %q", cfg.HistoryBackend, config.HistoryNone)
	}
}

func TestHistory(t *testing.T) {
	at := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubService{history: dto.AgentHistoryResponse{SessionID: "s1", Messages: []dto.AgentMessage{
		{Role: "user", Content: "hi", CreatedAt: at},
		{Role: "assistant", Content: "Hello", CreatedAt: at},
	}}}

	out, _, err := run(t, &options{build: stubBuild(svc, nil)}, "", "history", "--session", "s1", "--limit", "2")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	if svc.req.SessionID != "s1" || svc.limit == nil || *svc.limit != 2 {
		t.Fatalf("unexpected history call: %+v limit=%v", svc.req, svc.limit)
	}
	if !strings.Contains(out, "2025-03-01 12:00:00  assistant  Hello") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestHistoryRequiresSession(t *testing.T) {
	if _, _, err := run(t, &options{build: stubBuild(&stubService{}, nil)}, "", "history"); err == nil {
		t.Fatalf("expected missing --session error")
	}
}
