package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MockChatName  = "mock-chat"
	MockBatchName = "mock-batch"
)

// MockChatClient is an LLMClient for testing.
type MockChatClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Respond, when set, overrides the canned response fields and lets a
	// test script per-request behavior.
	Respond func(req *ChatRequest) (*ChatResult, error)

	requestCount atomic.Int64
}

// NewMockChatClient creates a new mock chat client with sensible defaults.
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockChatClient) Name() string {
	return MockChatName
}

// Chat sends a mock chat request.
func (c *MockChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	count := c.requestCount.Add(1)

	if c.Respond != nil {
		return c.Respond(req)
	}

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockChatName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if c.ShouldFail {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = "mock client configured to fail"
		return result, &ProviderError{Provider: MockChatName, Op: "chat", Err: fmt.Errorf("mock client configured to fail")}
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = fmt.Sprintf("mock client failed after %d requests", c.FailAfter)
		return result, &ProviderError{Provider: MockChatName, Op: "chat", Err: fmt.Errorf("mock client failed after %d requests", c.FailAfter)}
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result.Success = true
	result.Content = c.ResponseText
	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		result.ParsedJSON = c.ResponseJSON
		result.Content = string(c.ResponseJSON)
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(result.Content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	result.CostUSD = 0.001

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockChatClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Verify interface
var _ LLMClient = (*MockChatClient)(nil)

// MockBatchClient is a BatchClient for testing. It records submissions and
// serves scripted statuses and outcomes.
type MockBatchClient struct {
	mu sync.Mutex

	// SubmitErr, when set, fails Submit.
	SubmitErr error

	// Statuses is the sequence served by Poll; the last entry repeats.
	// Defaults to a single BatchEnded.
	Statuses []BatchStatus

	// Outcome scripts the outcome for a request. When nil, every request
	// succeeds with Content "mock: "+last user message.
	Outcome func(req BatchRequest) BatchOutcome

	// ResultsErr, when set, fails Results.
	ResultsErr error

	// Ephemeral marks jobs as lost on process exit, like an in-process
	// adapter's.
	Ephemeral bool

	submissions [][]BatchRequest
	pollCounts  map[string]int
	nextJobID   int
}

// NewMockBatchClient creates a mock batch client that completes immediately.
func NewMockBatchClient() *MockBatchClient {
	return &MockBatchClient{
		pollCounts: make(map[string]int),
	}
}

// Name returns the client identifier.
func (c *MockBatchClient) Name() string {
	return MockBatchName
}

// Resumable reports whether persisted job ids outlive the process.
func (c *MockBatchClient) Resumable() bool {
	return !c.Ephemeral
}

// Submit records the requests and returns a synthetic job id.
func (c *MockBatchClient) Submit(ctx context.Context, requests []BatchRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}

	c.nextJobID++
	jobID := fmt.Sprintf("mock-job-%d", c.nextJobID)
	copied := make([]BatchRequest, len(requests))
	copy(copied, requests)
	c.submissions = append(c.submissions, copied)
	return jobID, nil
}

// Poll serves the scripted status sequence.
func (c *MockBatchClient) Poll(ctx context.Context, jobID string) (BatchStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := c.Statuses
	if len(statuses) == 0 {
		statuses = []BatchStatus{BatchEnded}
	}
	idx := c.pollCounts[jobID]
	c.pollCounts[jobID]++
	if idx >= len(statuses) {
		idx = len(statuses) - 1
	}
	return statuses[idx], nil
}

// Results returns one outcome per submitted request of the most recent
// submission matching the job id ordering.
func (c *MockBatchClient) Results(ctx context.Context, jobID string) ([]BatchOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ResultsErr != nil {
		return nil, c.ResultsErr
	}

	var jobIndex int
	if _, err := fmt.Sscanf(jobID, "mock-job-%d", &jobIndex); err != nil || jobIndex < 1 || jobIndex > len(c.submissions) {
		return nil, &ProviderError{Provider: MockBatchName, Op: "results", Err: fmt.Errorf("unknown job %s", jobID)}
	}

	requests := c.submissions[jobIndex-1]
	outcomes := make([]BatchOutcome, 0, len(requests))
	for _, req := range requests {
		if c.Outcome != nil {
			outcomes = append(outcomes, c.Outcome(req))
			continue
		}
		last := ""
		if n := len(req.Request.Messages); n > 0 {
			last = req.Request.Messages[n-1].Content
		}
		outcomes = append(outcomes, BatchOutcome{
			CorrelationID: req.CorrelationID,
			Result: &ChatResult{
				Content:   "mock: " + last,
				Provider:  MockBatchName,
				RequestID: req.CorrelationID,
				Success:   true,
			},
		})
	}
	return outcomes, nil
}

// Submissions returns all recorded submissions.
func (c *MockBatchClient) Submissions() [][]BatchRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions
}

// Verify interface
var _ BatchClient = (*MockBatchClient)(nil)
