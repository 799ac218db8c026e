package providers

import (
	"context"
	"testing"
	"time"
)

func TestChatBatchAdapter(t *testing.T) {
	chat := &MockChatClient{ResponseText: "verdict"}
	adapter := NewChatBatchAdapter(chat, 2)

	requests := []BatchRequest{
		{CorrelationID: "a", Request: ChatRequest{Messages: []Message{{Role: "user", Content: "one"}}}},
		{CorrelationID: "b", Request: ChatRequest{Messages: []Message{{Role: "user", Content: "two"}}}},
		{CorrelationID: "c", Request: ChatRequest{Messages: []Message{{Role: "user", Content: "three"}}}},
	}

	jobID, err := adapter.Submit(context.Background(), requests)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	outcomes, err := adapter.Results(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes", len(outcomes))
	}
	for i, out := range outcomes {
		if out.CorrelationID != requests[i].CorrelationID {
			t.Errorf("outcome %d correlation = %q", i, out.CorrelationID)
		}
		if out.Result == nil || out.Result.Content != "verdict" {
			t.Errorf("outcome %d = %+v", i, out)
		}
	}

	status, err := adapter.Poll(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if status != BatchEnded {
		t.Errorf("status = %q", status)
	}
	if got := chat.RequestCount(); got != 3 {
		t.Errorf("chat calls = %d", got)
	}
}

func TestChatBatchAdapterPollWhileRunning(t *testing.T) {
	chat := &MockChatClient{ResponseText: "slow", Latency: 100 * time.Millisecond}
	adapter := NewChatBatchAdapter(chat, 1)

	jobID, err := adapter.Submit(context.Background(), []BatchRequest{
		{CorrelationID: "a", Request: ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if status, _ := adapter.Poll(context.Background(), jobID); status != BatchSubmitted {
		t.Errorf("status before completion = %q", status)
	}
	if _, err := adapter.Results(context.Background(), jobID); err != nil {
		t.Fatalf("Results() error = %v", err)
	}
}

func TestChatBatchAdapterUnknownJob(t *testing.T) {
	adapter := NewChatBatchAdapter(&MockChatClient{}, 1)
	if _, err := adapter.Poll(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestChatBatchAdapterNotResumable(t *testing.T) {
	adapter := NewChatBatchAdapter(&MockChatClient{}, 1)
	if adapter.Resumable() {
		t.Fatal("in-process jobs must not be marked resumable")
	}
}

func TestChatBatchAdapterFailuresBecomeOutcomes(t *testing.T) {
	chat := &MockChatClient{ShouldFail: true}
	adapter := NewChatBatchAdapter(chat, 1)

	jobID, err := adapter.Submit(context.Background(), []BatchRequest{
		{CorrelationID: "a", Request: ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	outcomes, err := adapter.Results(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if outcomes[0].Result != nil || outcomes[0].ErrorMessage == "" {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}
