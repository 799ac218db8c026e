// Package metrics provides cost and usage tracking for the pipeline's
// inference calls, plus the pre-run cost estimator behind the estimate
// command.
package metrics

import "time"

// Metric is a single recorded inference call. Metrics are append-only
// records in the home directory's metrics log.
type Metric struct {
	// Attribution
	Book    string `json:"book,omitempty"`
	Chapter int    `json:"chapter,omitempty"`
	Stage   string `json:"stage,omitempty"` // rewrite, audit, correct
	Unit    string `json:"unit,omitempty"`  // verse ref

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Cost and tokens
	CostUSD          float64 `json:"cost_usd,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Summary aggregates metrics for one book or one run.
type Summary struct {
	Count        int     `json:"count"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int     `json:"total_tokens"`
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
}

// Summarize folds a set of metrics into totals.
func Summarize(metrics []Metric) Summary {
	var s Summary
	for _, m := range metrics {
		s.Count++
		s.TotalCostUSD += m.CostUSD
		s.TotalTokens += m.TotalTokens
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
	}
	return s
}
