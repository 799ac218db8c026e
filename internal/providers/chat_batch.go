package providers

import (
	"context"
	"fmt"
	"sync"
)

// ChatBatchAdapter presents the BatchClient contract over a synchronous
// chat client, for audit providers whose endpoint has no batch API. Submit
// returns immediately and the requests run in the background under a
// bounded worker pool; Poll and Results behave like a real batch job.
type ChatBatchAdapter struct {
	client  LLMClient
	workers int

	mu     sync.Mutex
	nextID int
	jobs   map[string]*chatBatchJob
}

type chatBatchJob struct {
	done     chan struct{}
	outcomes []BatchOutcome
	errored  bool
}

// NewChatBatchAdapter wraps a chat client. workers bounds in-flight
// requests per job; the client's own rate limiter still applies.
func NewChatBatchAdapter(client LLMClient, workers int) *ChatBatchAdapter {
	if workers <= 0 {
		workers = 4
	}
	return &ChatBatchAdapter{
		client:  client,
		workers: workers,
		jobs:    make(map[string]*chatBatchJob),
	}
}

// Name returns the client identifier.
func (a *ChatBatchAdapter) Name() string {
	return a.client.Name() + "-batch"
}

// Resumable is false: jobs exist only in this process, so a persisted job
// id is useless to a later invocation.
func (a *ChatBatchAdapter) Resumable() bool {
	return false
}

// Submit starts the requests in the background and returns a job id.
func (a *ChatBatchAdapter) Submit(ctx context.Context, requests []BatchRequest) (string, error) {
	if len(requests) == 0 {
		return "", fmt.Errorf("no requests to submit")
	}

	a.mu.Lock()
	a.nextID++
	jobID := fmt.Sprintf("chat-batch-%d", a.nextID)
	job := &chatBatchJob{
		done:     make(chan struct{}),
		outcomes: make([]BatchOutcome, len(requests)),
	}
	a.jobs[jobID] = job
	a.mu.Unlock()

	// The background context is deliberate: a submitted batch outlives
	// the submitting call, like a provider-side job would.
	go a.execute(context.WithoutCancel(ctx), job, requests)
	return jobID, nil
}

func (a *ChatBatchAdapter) execute(ctx context.Context, job *chatBatchJob, requests []BatchRequest) {
	defer close(job.done)

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req BatchRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := BatchOutcome{CorrelationID: req.CorrelationID}
			chatReq := req.Request
			result, err := a.client.Chat(ctx, &chatReq)
			if err != nil {
				outcome.ErrorMessage = err.Error()
			} else {
				outcome.Result = result
			}
			job.outcomes[i] = outcome
		}(i, req)
	}
	wg.Wait()
}

// Poll reports whether the background job has finished.
func (a *ChatBatchAdapter) Poll(ctx context.Context, jobID string) (BatchStatus, error) {
	job, err := a.lookup(jobID)
	if err != nil {
		return "", err
	}
	select {
	case <-job.done:
		return BatchEnded, nil
	default:
		return BatchSubmitted, nil
	}
}

// Results blocks until the job finishes and returns its outcomes.
func (a *ChatBatchAdapter) Results(ctx context.Context, jobID string) ([]BatchOutcome, error) {
	job, err := a.lookup(jobID)
	if err != nil {
		return nil, err
	}
	select {
	case <-job.done:
		return job.outcomes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *ChatBatchAdapter) lookup(jobID string) (*chatBatchJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[jobID]
	if !ok {
		return nil, &ProviderError{Provider: a.Name(), Op: "poll", Err: fmt.Errorf("unknown job %s", jobID)}
	}
	return job, nil
}

// Verify interface
var _ BatchClient = (*ChatBatchAdapter)(nil)
