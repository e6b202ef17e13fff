package dto

import (
	"bytes"
	"time"
)

// LooseBool is true only for the JSON literal true or the string "true".
// Any other value, including a missing field, decodes to false.
type LooseBool bool

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case `true`, `"true"`:
		*b = true
	default:
		*b = false
	}
	return nil
}

// AgentRequest is the inbound question for both the HTTP route and the
// Lambda handler.
type AgentRequest struct {
	SessionID  string    `json:"sessionId"`
	Question   string    `json:"question"`
	EndSession LooseBool `json:"endSession"`
}

// AgentInvokeInput is one outbound call to the agent runtime.
type AgentInvokeInput struct {
	SessionID  string
	InputText  string
	EndSession bool
}

// AgentInvokeBody is the JSON document posted to the agent runtime.
type AgentInvokeBody struct {
	InputText   string `json:"inputText"`
	EnableTrace bool   `json:"enableTrace"`
	EndSession  bool   `json:"endSession"`
}

type AgentAnswer struct {
	SessionID string
	Answer    string
	Trace     []string
	Source    string
}

// AgentQueryResponse keeps the field names existing chat clients read:
// "response" carries the decode trace and "trace_data" the answer text.
type AgentQueryResponse struct {
	Response  []string `json:"response"`
	TraceData string   `json:"trace_data"`
}

func NewAgentQueryResponse(a AgentAnswer) AgentQueryResponse {
	trace := a.Trace
	if trace == nil {
		trace = []string{}
	}
	return AgentQueryResponse{Response: trace, TraceData: a.Answer}
}

// InvokeResponse is the Lambda envelope; Body holds a JSON document.
type InvokeResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type InvokeErrorBody struct {
	Error string `json:"error"`
}

type AgentMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type AgentHistoryResponse struct {
	SessionID string         `json:"sessionId"`
	Messages  []AgentMessage `json:"messages"`
}
