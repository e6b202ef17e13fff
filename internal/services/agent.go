package services

import (
	"context"
	"strings"
	"time"

	"github.com/GregMSThompson/agent-bridge/internal/agentstream"
	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/internal/errs"
	"github.com/GregMSThompson/agent-bridge/internal/models"
	"github.com/GregMSThompson/agent-bridge/internal/observability"
	"github.com/GregMSThompson/agent-bridge/pkg/helpers"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

type agentClient interface {
	InvokeAgent(ctx context.Context, in dto.AgentInvokeInput) ([]byte, error)
}

type streamDecoder interface {
	Decode(body []byte) agentstream.Result
}

type historyStore interface {
	Append(ctx context.Context, owner, sessionID string, msgs ...models.Message) error
	List(ctx context.Context, owner, sessionID string, limit int) ([]models.Message, error)
}

type agentService struct {
	agent        agentClient
	decoder      streamDecoder
	store        historyStore
	metrics      *observability.Metrics
	ttl          time.Duration
	historyLimit int
	clockNow     func() time.Time
}

// NewAgentService wires the agent call path. store may be nil, in which case
// nothing is persisted and History reports not found.
func NewAgentService(agent agentClient, decoder streamDecoder, store historyStore, metrics *observability.Metrics, ttl time.Duration, historyLimit int) *agentService {
	return &agentService{
		agent:        agent,
		decoder:      decoder,
		store:        store,
		metrics:      metrics,
		ttl:          ttl,
		historyLimit: historyLimit,
		clockNow:     time.Now,
	}
}

func (s *agentService) Ask(ctx context.Context, owner string, req dto.AgentRequest) (dto.AgentAnswer, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return dto.AgentAnswer{}, errs.NewValidationError("sessionId", "sessionId is required")
	}
	if strings.TrimSpace(req.Question) == "" {
		return dto.AgentAnswer{}, errs.NewValidationError("question", "question is required")
	}

	log, ctx := logger.With(ctx, "session_id", req.SessionID)

	start := time.Now()
	body, err := s.agent.InvokeAgent(ctx, dto.AgentInvokeInput{
		SessionID:  req.SessionID,
		InputText:  req.Question,
		EndSession: bool(req.EndSession),
	})
	s.metrics.ObserveInvocation(time.Since(start), err)
	if err != nil {
		log.Error("agent invocation failed", "error", err)
		return dto.AgentAnswer{}, err
	}

	res := s.decoder.Decode(body)
	s.metrics.ObserveDecode(res)
	if failed := res.Failed(); failed > 0 {
		log.Warn("agent stream frames failed to decode", "count", failed)
	}
	if logger.IsDebugEnabled(ctx) {
		log.Debug("agent stream decoded", "mode", res.Mode, "trace", res.Trace)
	}

	if err := s.saveExchange(ctx, owner, req.SessionID, req.Question, res.Answer); err != nil {
		return dto.AgentAnswer{}, err
	}

	log.Info("agent query completed", "source", res.Source, "answer_length", len(res.Answer))
	return dto.AgentAnswer{
		SessionID: req.SessionID,
		Answer:    res.Answer,
		Trace:     res.Trace,
		Source:    string(res.Source),
	}, nil
}

func (s *agentService) saveExchange(ctx context.Context, owner, sessionID, question, answer string) error {
	if s.store == nil {
		return nil
	}

	at := s.clockNow().UTC()
	msgs := []models.Message{s.newMessage(models.RoleUser, question, at)}
	// Only save non-empty assistant responses
	if answer != "" {
		msgs = append(msgs, s.newMessage(models.RoleAssistant, answer, at.Add(time.Microsecond)))
	}
	return s.store.Append(ctx, owner, sessionID, msgs...)
}

func (s *agentService) newMessage(role, content string, at time.Time) models.Message {
	msg := models.Message{Role: role, Content: content, CreatedAt: at}
	if s.ttl > 0 {
		msg.ExpiresAt = at.Add(s.ttl)
	}
	return msg
}

func (s *agentService) History(ctx context.Context, owner, sessionID string, limit *int) (dto.AgentHistoryResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return dto.AgentHistoryResponse{}, errs.NewValidationError("sessionId", "sessionId is required")
	}
	if s.store == nil {
		return dto.AgentHistoryResponse{}, errs.NewNotFoundError("history is not enabled")
	}
	n := helpers.ValueOr(limit, s.historyLimit)
	if n < 0 {
		return dto.AgentHistoryResponse{}, errs.NewValidationError("limit", "limit must not be negative")
	}

	msgs, err := s.store.List(ctx, owner, sessionID, n)
	if err != nil {
		return dto.AgentHistoryResponse{}, err
	}

	out := dto.AgentHistoryResponse{SessionID: sessionID, Messages: make([]dto.AgentMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, dto.AgentMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out, nil
}
