package metrics

import (
	"strings"

	"github.com/clearcanon/clarify/internal/canon"
)

// Pricing is a model's cost per million tokens.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// defaultPricing covers the models the default config names. Unknown models
// fall back to the most expensive known entry so estimates err high.
var defaultPricing = map[string]Pricing{
	"gpt-4o":          {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":     {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"claude-sonnet-4": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku-4":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
}

// batchDiscount is the batch API price relative to synchronous pricing.
const batchDiscount = 0.5

// promptOverheadTokens approximates the system prompt and framing around
// each verse.
const promptOverheadTokens = 350

// Estimate is a pre-run cost projection. It covers the rewrite and audit
// batches for every verse; correction cost is excluded because the number
// of failing verses is unknowable up front.
type Estimate struct {
	Verses         int     `json:"verses"`
	RewriteTokens  int     `json:"rewrite_tokens"`
	AuditTokens    int     `json:"audit_tokens"`
	RewriteCostUSD float64 `json:"rewrite_cost_usd"`
	AuditCostUSD   float64 `json:"audit_cost_usd"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
}

// EstimateVerses projects the cost of rewriting and auditing the given
// verses. Token counts use the rough four-characters-per-token heuristic.
// Only the rewrite stage goes through the batch API; the audit provider is
// a synchronous chat endpoint, so its leg is priced at full rates.
func EstimateVerses(verses []canon.SourceVerse, rewriteModel, auditModel string) Estimate {
	est := Estimate{Verses: len(verses)}

	rewritePrice := priceFor(rewriteModel)
	auditPrice := priceFor(auditModel)

	for _, v := range verses {
		verseTokens := approxTokens(v.Text)

		// Rewrite: system prompt + verse in, roughly a verse out.
		rewriteIn := promptOverheadTokens + verseTokens
		rewriteOut := verseTokens
		est.RewriteTokens += rewriteIn + rewriteOut
		est.RewriteCostUSD += cost(rewritePrice, rewriteIn, rewriteOut) * batchDiscount

		// Audit: system prompt + original + candidate in, a short verdict
		// out, at synchronous rates.
		auditIn := promptOverheadTokens + 2*verseTokens
		auditOut := 40
		est.AuditTokens += auditIn + auditOut
		est.AuditCostUSD += cost(auditPrice, auditIn, auditOut)
	}

	est.TotalCostUSD = est.RewriteCostUSD + est.AuditCostUSD
	return est
}

func approxTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func cost(p Pricing, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
}

func priceFor(model string) Pricing {
	if p, ok := defaultPricing[model]; ok {
		return p
	}
	// Substring match tolerates provider-prefixed names like
	// "anthropic/claude-sonnet-4".
	for name, p := range defaultPricing {
		if strings.Contains(model, name) {
			return p
		}
	}
	var max Pricing
	for _, p := range defaultPricing {
		if p.InputPerMTok > max.InputPerMTok {
			max = p
		}
	}
	return max
}
