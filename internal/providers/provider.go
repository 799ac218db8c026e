package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LLMClient is the synchronous chat interface. The correction stage and
// the audit re-check are its only call paths in the pipeline.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "chat").
	Name() string
}

// BatchClient is the asynchronous, job-based inference interface used by
// the rewrite and audit phases. Submission is fire-and-forget: callers
// persist the returned job id plus their correlation map before relying
// on it, then poll until a terminal status.
type BatchClient interface {
	// Submit uploads the requests as one provider batch job and returns
	// the provider-assigned job id.
	Submit(ctx context.Context, requests []BatchRequest) (string, error)

	// Poll fetches current job status.
	Poll(ctx context.Context, jobID string) (BatchStatus, error)

	// Results downloads per-request outcomes for an ended job, keyed by
	// correlation id. Order is not guaranteed.
	Results(ctx context.Context, jobID string) ([]BatchOutcome, error)

	// Resumable reports whether a job id from an earlier process can
	// still be polled. Provider-side jobs survive restarts; in-process
	// adapters lose theirs and must be resubmitted.
	Resumable() bool

	// Name returns the client identifier (e.g., "openai-batch").
	Name() string
}

// BatchStatus is the pipeline's view of a provider job status.
type BatchStatus string

const (
	BatchSubmitted BatchStatus = "submitted"
	BatchEnded     BatchStatus = "ended"
	BatchErrored   BatchStatus = "errored"
)

// Terminal reports whether the status ends the polling loop.
func (s BatchStatus) Terminal() bool {
	return s == BatchEnded || s == BatchErrored
}

// BatchRequest is one unit of a batch job. CorrelationID is the sole link
// between the submitted unit and its downloaded outcome.
type BatchRequest struct {
	CorrelationID string      `json:"correlation_id"`
	Request       ChatRequest `json:"request"`
}

// BatchOutcome is the downloaded result for one batch request.
type BatchOutcome struct {
	CorrelationID string      `json:"correlation_id"`
	Result        *ChatResult `json:"result,omitempty"` // nil on failure
	ErrorMessage  string      `json:"error_message,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Parsed if ResponseFormat was set

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Cost and timing
	CostUSD       float64       `json:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	// Success/error
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ProviderError wraps a transport or provider-side failure. The orchestrator
// retries polls that return it and fails the book run when retries exhaust.
type ProviderError struct {
	Provider string
	Op       string // "submit", "poll", "results", "chat"
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
