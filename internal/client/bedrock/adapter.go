package bedrockclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

const (
	signingService = "bedrock"
	maxErrorBody   = 4 << 10
)

type Options struct {
	Region       string
	AgentID      string
	AgentAliasID string
	// BaseURL replaces https://bedrock-agent-runtime.<region>.amazonaws.com.
	BaseURL string
	Timeout time.Duration
}

type signer interface {
	SignHTTP(ctx context.Context, credentials aws.Credentials, r *http.Request, payloadHash string, service string, region string, signingTime time.Time, optFns ...func(*v4.SignerOptions)) error
}

type Adapter struct {
	opts   Options
	creds  aws.CredentialsProvider
	signer signer
	http   *http.Client
	log    *slog.Logger
	now    func() time.Time
}

func NewAdapter(log *slog.Logger, creds aws.CredentialsProvider, opts Options) (*Adapter, error) {
	if opts.Region == "" || opts.AgentID == "" || opts.AgentAliasID == "" {
		return nil, fmt.Errorf("bedrock region, agent id and alias id are required")
	}
	if creds == nil {
		return nil, fmt.Errorf("bedrock credentials provider is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fmt.Sprintf("https://bedrock-agent-runtime.%s.amazonaws.com", opts.Region)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Adapter{
		opts:   opts,
		creds:  creds,
		signer: v4.NewSigner(),
		http:   &http.Client{Timeout: opts.Timeout},
		log:    log,
		now:    time.Now,
	}, nil
}

// Endpoint returns the invoke URL for a session.
func (a *Adapter) Endpoint(sessionID string) string {
	return fmt.Sprintf("%s/agents/%s/agentAliases/%s/sessions/%s/text",
		a.opts.BaseURL,
		url.PathEscape(a.opts.AgentID),
		url.PathEscape(a.opts.AgentAliasID),
		url.PathEscape(sessionID),
	)
}

// InvokeAgent posts the question and returns the buffered response body.
func (a *Adapter) InvokeAgent(ctx context.Context, in dto.AgentInvokeInput) ([]byte, error) {
	payload, err := json.Marshal(dto.AgentInvokeBody{
		InputText:   in.InputText,
		EnableTrace: true,
		EndSession:  in.EndSession,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint(in.SessionID), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	creds, err := a.creds.Retrieve(ctx)
	if err != nil {
		return nil, errs.NewExternalServiceError("aws-credentials", "failed to resolve aws credentials", false, err)
	}

	sum := sha256.Sum256(payload)
	if err := a.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), signingService, a.opts.Region, a.now()); err != nil {
		return nil, errs.NewExternalServiceError("aws-credentials", "failed to sign agent request", false, err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errs.NewTransportError(0, "agent request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if a.log != nil {
			a.log.Warn("agent returned non-2xx", "status", resp.StatusCode, "body", string(snippet))
		}
		return nil, errs.NewTransportError(resp.StatusCode,
			fmt.Sprintf("agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewTransportError(resp.StatusCode, "read agent response", err)
	}
	return body, nil
}
