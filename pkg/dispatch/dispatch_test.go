package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/retry"
)

type captureCosts struct {
	records []*models.CostRecord
}

func (c *captureCosts) RecordCost(_ context.Context, rec *models.CostRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func agentReply() map[string]any {
	return map[string]any{
		"response": "Booked UA123",
		"tool_calls": []map[string]any{
			{"name": "search_flights", "arguments": map[string]any{"origin": "BOS"}},
		},
		"metadata": map[string]any{
			"model": "gpt-4o", "tokens_in": 500, "tokens_out": 80,
		},
	}
}

func TestDispatchSuccess(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(agentReply())
	}))
	defer srv.Close()

	costs := &captureCosts{}
	d := New("sk-test", fastPolicy(), 5*time.Second, costs)

	result, err := d.Dispatch(context.Background(), srv.URL, Request{
		Input:           "book a flight",
		TestCaseID:      "tc_1",
		EvaluationRunID: "eval_1",
		SystemPrompt:    "you are a travel agent",
	}, 0, Attribution{EvaluationID: "eval_1", TestCaseID: "tc_1", AgentID: "agent_1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "book a flight", gotReq.Input)
	assert.Equal(t, "you are a travel agent", gotReq.SystemPrompt)
	assert.Equal(t, "Booked UA123", result.Response)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "search_flights", result.ToolCalls[0].Name)
	assert.Equal(t, 0, result.RetryCount)

	require.Len(t, costs.records, 1)
	assert.Equal(t, models.CallAgentInvocation, costs.records[0].CallType)
	assert.Equal(t, 500, costs.records[0].TokensIn)
	assert.Greater(t, costs.records[0].CostUSD, 0.0)
}

func TestDispatchRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(agentReply())
	}))
	defer srv.Close()

	d := New("", fastPolicy(), 5*time.Second, nil)
	var waits []int
	result, err := d.Dispatch(context.Background(), srv.URL, Request{Input: "x"},
		0, Attribution{}, func(attempt int, _ time.Duration) {
			waits = append(waits, attempt)
		})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{1, 2}, waits)
	assert.Equal(t, 2, result.RetryCount)
}

func TestDispatchExhausts429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := New("", fastPolicy(), 5*time.Second, nil)
	result, err := d.Dispatch(context.Background(), srv.URL, Request{Input: "x"}, 0, Attribution{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrAttemptsExhausted)
	assert.True(t, retry.IsRateLimit(err))

	// The backoff count survives exhaustion so the case result can report it.
	require.NotNil(t, result)
	assert.Equal(t, 3, result.RetryCount)
}

func TestDispatchOtherErrorsSingleShot(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "agent exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New("", fastPolicy(), 5*time.Second, nil)
	result, err := d.Dispatch(context.Background(), srv.URL, Request{Input: "x"}, 0, Attribution{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, result.RetryCount)
}

func TestDispatchAbortsOnContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(agentReply())
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	d := New("", fastPolicy(), 5*time.Second, nil)
	start := time.Now()
	_, err := d.Dispatch(ctx, srv.URL, Request{Input: "x"}, 0, Attribution{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatchPerCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(agentReply())
	}))
	defer srv.Close()

	// The constructor default applies when no per-call timeout is given.
	d := New("", fastPolicy(), 50*time.Millisecond, nil)
	_, err := d.Dispatch(context.Background(), srv.URL, Request{Input: "x"}, 0, Attribution{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A per-call timeout overrides the default in either direction.
	result, err := d.Dispatch(context.Background(), srv.URL, Request{Input: "x"}, 2*time.Second, Attribution{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Booked UA123", result.Response)
}

func TestDispatchNoCostRecordWithoutUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
	}))
	defer srv.Close()

	costs := &captureCosts{}
	d := New("", fastPolicy(), 5*time.Second, costs)
	result, err := d.Dispatch(context.Background(), srv.URL, Request{Input: "x"}, 0, Attribution{}, nil)
	require.NoError(t, err)
	assert.Empty(t, costs.records)
	assert.NotNil(t, result.ToolCalls)
}
