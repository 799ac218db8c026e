package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIBatchName = "openai-batch"

	// batchEndpoint is the per-line URL inside the JSONL input file.
	batchEndpoint = "/v1/chat/completions"
)

// OpenAIBatchConfig holds configuration for the OpenAI batch client.
type OpenAIBatchConfig struct {
	APIKey     string
	Model      string        // Default model for requests that omit one
	MaxRetries int           // SDK transport retries (default: 3)
	Timeout    time.Duration // HTTP timeout (default: 300s)
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIBatchClient implements BatchClient using the official OpenAI SDK's
// Files + Batches APIs: requests are uploaded as a JSONL file, executed as
// one asynchronous job, and downloaded as a JSONL output file.
type OpenAIBatchClient struct {
	model  string
	client openai.Client
}

// NewOpenAIBatchClient creates a new OpenAI batch client.
func NewOpenAIBatchClient(cfg OpenAIBatchConfig) *OpenAIBatchClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBatchClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIBatchClient) Name() string {
	return OpenAIBatchName
}

// Resumable is true: batch jobs live at the provider, so any process that
// knows the job id can poll and download them.
func (c *OpenAIBatchClient) Resumable() bool {
	return true
}

// batchInputLine is one line of the uploaded JSONL file.
type batchInputLine struct {
	CustomID string         `json:"custom_id"`
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Body     map[string]any `json:"body"`
}

// batchOutputLine is one line of the downloaded JSONL output file.
type batchOutputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// completionBody is the chat completion object inside a successful line.
type completionBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Submit uploads requests as a JSONL batch file and creates the job.
func (c *OpenAIBatchClient) Submit(ctx context.Context, requests []BatchRequest) (string, error) {
	if len(requests) == 0 {
		return "", fmt.Errorf("no requests to submit")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range requests {
		model := r.Request.Model
		if model == "" {
			model = c.model
		}
		body := map[string]any{
			"model":    model,
			"messages": r.Request.Messages,
		}
		if r.Request.Temperature > 0 {
			body["temperature"] = r.Request.Temperature
		}
		if r.Request.MaxTokens > 0 {
			body["max_tokens"] = r.Request.MaxTokens
		}
		if r.Request.ResponseFormat != nil {
			body["response_format"] = r.Request.ResponseFormat
		}
		line := batchInputLine{
			CustomID: r.CorrelationID,
			Method:   "POST",
			URL:      batchEndpoint,
			Body:     body,
		}
		if err := enc.Encode(line); err != nil {
			return "", fmt.Errorf("failed to encode batch line: %w", err)
		}
	}

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(buf.Bytes()), "batch_input.jsonl", "application/jsonl"),
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return "", &ProviderError{Provider: OpenAIBatchName, Op: "submit", Err: fmt.Errorf("file upload: %w", err)}
	}

	batch, err := c.client.Batches.New(ctx, openai.BatchNewParams{
		CompletionWindow: openai.BatchNewParamsCompletionWindow24h,
		Endpoint:         openai.BatchNewParamsEndpointV1ChatCompletions,
		InputFileID:      file.ID,
	})
	if err != nil {
		return "", &ProviderError{Provider: OpenAIBatchName, Op: "submit", Err: fmt.Errorf("batch create: %w", err)}
	}

	return batch.ID, nil
}

// Poll fetches current job status, collapsed to the pipeline's three states.
func (c *OpenAIBatchClient) Poll(ctx context.Context, jobID string) (BatchStatus, error) {
	batch, err := c.client.Batches.Get(ctx, jobID)
	if err != nil {
		return "", &ProviderError{Provider: OpenAIBatchName, Op: "poll", Err: err}
	}
	return mapBatchStatus(batch.Status), nil
}

// mapBatchStatus collapses provider statuses to submitted/ended/errored.
func mapBatchStatus(status openai.BatchStatus) BatchStatus {
	switch status {
	case openai.BatchStatusCompleted:
		return BatchEnded
	case openai.BatchStatusFailed, openai.BatchStatusExpired,
		openai.BatchStatusCancelling, openai.BatchStatusCancelled:
		return BatchErrored
	default:
		// validating, in_progress, finalizing
		return BatchSubmitted
	}
}

// Results downloads the output (and error) files of an ended job.
func (c *OpenAIBatchClient) Results(ctx context.Context, jobID string) ([]BatchOutcome, error) {
	batch, err := c.client.Batches.Get(ctx, jobID)
	if err != nil {
		return nil, &ProviderError{Provider: OpenAIBatchName, Op: "results", Err: err}
	}

	var outcomes []BatchOutcome
	for _, fileID := range []string{batch.OutputFileID, batch.ErrorFileID} {
		if fileID == "" {
			continue
		}
		batchLines, err := c.downloadOutcomes(ctx, fileID)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, batchLines...)
	}

	if len(outcomes) == 0 {
		return nil, &ProviderError{
			Provider: OpenAIBatchName,
			Op:       "results",
			Err:      fmt.Errorf("job %s has no output file (status %s)", jobID, batch.Status),
		}
	}
	return outcomes, nil
}

// downloadOutcomes streams one JSONL result file into outcomes.
func (c *OpenAIBatchClient) downloadOutcomes(ctx context.Context, fileID string) ([]BatchOutcome, error) {
	resp, err := c.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, &ProviderError{Provider: OpenAIBatchName, Op: "results", Err: fmt.Errorf("file %s: %w", fileID, err)}
	}
	defer resp.Body.Close()

	var outcomes []BatchOutcome
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var out batchOutputLine
		if err := json.Unmarshal(line, &out); err != nil {
			// A malformed line loses one unit, not the whole download.
			outcomes = append(outcomes, BatchOutcome{
				ErrorMessage: fmt.Sprintf("malformed result line: %v", err),
			})
			continue
		}
		outcomes = append(outcomes, c.lineToOutcome(out))
	}
	if err := scanner.Err(); err != nil {
		return nil, &ProviderError{Provider: OpenAIBatchName, Op: "results", Err: fmt.Errorf("file %s read: %w", fileID, err)}
	}
	return outcomes, nil
}

func (c *OpenAIBatchClient) lineToOutcome(out batchOutputLine) BatchOutcome {
	outcome := BatchOutcome{CorrelationID: out.CustomID}

	if out.Error != nil {
		outcome.ErrorMessage = fmt.Sprintf("%s: %s", out.Error.Code, out.Error.Message)
		return outcome
	}
	if out.Response == nil || out.Response.StatusCode != http.StatusOK {
		code := 0
		if out.Response != nil {
			code = out.Response.StatusCode
		}
		outcome.ErrorMessage = fmt.Sprintf("request failed with status %d", code)
		return outcome
	}

	var body completionBody
	if err := json.Unmarshal(out.Response.Body, &body); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("malformed completion body: %v", err)
		return outcome
	}
	if len(body.Choices) == 0 {
		outcome.ErrorMessage = "no choices in completion"
		return outcome
	}

	outcome.Result = &ChatResult{
		Content:          body.Choices[0].Message.Content,
		PromptTokens:     body.Usage.PromptTokens,
		CompletionTokens: body.Usage.CompletionTokens,
		TotalTokens:      body.Usage.TotalTokens,
		Provider:         OpenAIBatchName,
		ModelUsed:        body.Model,
		RequestID:        out.CustomID,
		Attempts:         1,
		Success:          true,
	}
	return outcome
}

// Verify interface
var _ BatchClient = (*OpenAIBatchClient)(nil)
