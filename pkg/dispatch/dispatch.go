// Package dispatch calls the agent under test over HTTP and normalizes its
// reply into a response string plus structured tool calls.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agentevalhq/agenteval/pkg/llm"
	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
)

// CostSink receives one accounting row per agent call that reports usage.
type CostSink interface {
	RecordCost(ctx context.Context, rec *models.CostRecord) error
}

// Request is the wire contract posted to the agent endpoint. Every field
// except Input is optional context the agent may use or ignore.
type Request struct {
	Input           string `json:"input"`
	DatasetID       string `json:"dataset_id,omitempty"`
	TestCaseID      string `json:"test_case_id,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`
	EvaluationRunID string `json:"evaluation_run_id,omitempty"`
	// SystemPrompt overrides the agent's own prompt when the run pins a
	// specific prompt version.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Metadata is the agent's self-reported telemetry.
type Metadata struct {
	Model     string  `json:"model,omitempty"`
	TokensIn  int     `json:"tokens_in,omitempty"`
	TokensOut int     `json:"tokens_out,omitempty"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Result is the normalized agent reply.
type Result struct {
	Response   string            `json:"response"`
	ToolCalls  []models.ToolCall `json:"tool_calls"`
	Metadata   Metadata          `json:"metadata"`
	RetryCount int               `json:"-"`
}

// Dispatcher posts test-case inputs to agent endpoints with rate-limit
// backoff.
type Dispatcher struct {
	httpClient  *http.Client
	apiKey      string
	policy      retry.Policy
	callTimeout time.Duration
	costs       CostSink
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = hc }
}

// New builds a Dispatcher. timeout is the default per-call deadline, used
// when Dispatch is not given one; costs may be nil to skip accounting.
func New(apiKey string, policy retry.Policy, timeout time.Duration, costs CostSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		httpClient:  &http.Client{},
		apiKey:      apiKey,
		policy:      policy,
		callTimeout: timeout,
		costs:       costs,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attribution tags cost records with the run and case being dispatched.
type Attribution struct {
	EvaluationID string
	TestCaseID   string
	AgentID      string
}

// Dispatch posts the request to endpointURL. HTTP 429 is retried with
// backoff; every other transport or protocol error is single-shot and
// surfaces to the caller, who records it as the case's execution error.
// timeout bounds each individual HTTP attempt; zero falls back to the
// Dispatcher default. Cancelling ctx aborts an in-flight call. On error the
// returned Result still carries the retry count for the persisted case.
func (d *Dispatcher) Dispatch(ctx context.Context, endpointURL string, req Request, timeout time.Duration, attr Attribution, onWait retry.OnWait) (*Result, error) {
	if timeout <= 0 {
		timeout = d.callTimeout
	}
	var result *Result
	retries := 0
	err := d.policy.Do(ctx, func() error {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		var callErr error
		result, callErr = d.post(callCtx, endpointURL, req)
		return callErr
	}, func(attempt int, wait time.Duration) {
		retries++
		if onWait != nil {
			onWait(attempt, wait)
		}
	})
	if err != nil {
		return &Result{RetryCount: retries}, err
	}
	result.RetryCount = retries
	d.recordCost(ctx, attr, result.Metadata)
	return result, nil
}

func (d *Dispatcher) post(ctx context.Context, endpointURL string, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retry.RateLimitError{Source: "agent", Detail: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	if result.ToolCalls == nil {
		result.ToolCalls = []models.ToolCall{}
	}
	return &result, nil
}

func (d *Dispatcher) recordCost(ctx context.Context, attr Attribution, meta Metadata) {
	if d.costs == nil || (meta.TokensIn == 0 && meta.TokensOut == 0 && meta.CostUSD == 0) {
		return
	}
	cost := meta.CostUSD
	if cost == 0 {
		cost = llm.EstimateCost(meta.Model, meta.TokensIn, meta.TokensOut)
	}
	rec := &models.CostRecord{
		EvaluationID: attr.EvaluationID,
		TestCaseID:   attr.TestCaseID,
		AgentID:      attr.AgentID,
		CallType:     models.CallAgentInvocation,
		Model:        meta.Model,
		TokensIn:     meta.TokensIn,
		TokensOut:    meta.TokensOut,
		CostUSD:      cost,
	}
	if err := d.costs.RecordCost(ctx, rec); err != nil {
		slog.Warn("Failed to record agent cost", "error", err)
	}
}
