package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/clearcanon/clarify/internal/providers"
	"github.com/clearcanon/clarify/internal/stages"
)

// UnspecifiedReason is substituted when the auditor fails a candidate
// without naming a violation. The verdict still counts as a failure.
const UnspecifiedReason = "unspecified violation (auditor returned no reason)"

// verdictSchema validates the auditor's JSON output before it is trusted.
const verdictSchema = `{
	"type": "object",
	"properties": {
		"pass": {"type": "boolean"},
		"reason": {"type": "string"}
	},
	"required": ["pass"],
	"additionalProperties": false
}`

var compiledVerdictSchema = jsonschema.MustCompileString("verdict.json", verdictSchema)

// Verdict is the auditor's decision on one candidate. Text is the exact
// candidate the verdict applies to; the corpus writer refuses to commit any
// other text under this verdict.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
	Text   string `json:"-"`
}

// responseFormat constrains the auditor to the verdict object.
func responseFormat() *providers.ResponseFormat {
	schema, _ := json.Marshal(map[string]any{
		"name":   "audit_verdict",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pass": map[string]any{
					"type":        "boolean",
					"description": "True only if the candidate preserves the original meaning exactly",
				},
				"reason": map[string]any{
					"type":        "string",
					"description": "The specific violation when pass is false",
				},
			},
			"required":             []string{"pass"},
			"additionalProperties": false,
		},
	})
	return &providers.ResponseFormat{Type: "json_schema", JSONSchema: schema}
}

// ParseVerdict interprets an auditor response for one unit. A response that
// is not the verdict object is a ParseError; a failing verdict with no
// reason gets UnspecifiedReason so the failure is never silently dropped.
func ParseVerdict(result *providers.ChatResult, unit, candidate string) (Verdict, error) {
	if result == nil || !result.Success {
		msg := "no result"
		if result != nil {
			msg = result.ErrorMessage
		}
		return Verdict{}, &stages.ParseError{
			Stage: stages.StageAudit,
			Unit:  unit,
			Err:   fmt.Errorf("audit request failed: %s", msg),
		}
	}

	raw := result.ParsedJSON
	if len(raw) == 0 {
		raw = json.RawMessage(strings.TrimSpace(result.Content))
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Verdict{}, &stages.ParseError{Stage: stages.StageAudit, Unit: unit, Err: err}
	}
	if err := compiledVerdictSchema.Validate(payload); err != nil {
		return Verdict{}, &stages.ParseError{Stage: stages.StageAudit, Unit: unit, Err: err}
	}

	var verdict Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return Verdict{}, &stages.ParseError{Stage: stages.StageAudit, Unit: unit, Err: err}
	}
	verdict.Text = candidate
	if !verdict.Pass && strings.TrimSpace(verdict.Reason) == "" {
		verdict.Reason = UnspecifiedReason
	}
	return verdict, nil
}
