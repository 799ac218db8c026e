package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the config shape before a run starts. Tuning
// values outside these bounds have produced runs that either hammer the
// provider or never terminate the poll loop.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "providers": {
      "type": "object",
      "properties": {
        "rewrite": {"$ref": "#/$defs/provider"},
        "audit": {"$ref": "#/$defs/provider"}
      },
      "required": ["rewrite", "audit"]
    },
    "pipeline": {
      "type": "object",
      "properties": {
        "escalation_threshold_pct": {"type": "number", "minimum": 0, "maximum": 100},
        "max_consecutive_chapter_failures": {"type": "integer", "minimum": 1},
        "poll_interval_seconds": {"type": "integer", "minimum": 1},
        "poll_max_attempts": {"type": "integer", "minimum": 1},
        "correction_workers": {"type": "integer", "minimum": 1, "maximum": 64}
      }
    },
    "corpus": {
      "type": "object",
      "properties": {
        "url": {"type": "string", "minLength": 1}
      }
    }
  },
  "$defs": {
    "provider": {
      "type": "object",
      "properties": {
        "type": {"type": "string", "enum": ["openai-batch", "chat"]},
        "model": {"type": "string", "minLength": 1}
      },
      "required": ["type", "model"]
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("config.json", configSchema)

// Validate checks a config against the embedded JSON schema plus the
// structural no-self-audit rule.
func Validate(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if SameDecisionProcess(cfg.Providers.Rewrite, cfg.Providers.Audit) {
		return fmt.Errorf("invalid config: providers.audit must differ from providers.rewrite (a generator cannot certify its own output)")
	}
	return nil
}

// SameDecisionProcess reports whether two provider configs describe the
// same decision process. Matching type+model+base_url is treated as the
// same process regardless of credentials.
func SameDecisionProcess(a, b ProviderCfg) bool {
	return a.Type == b.Type && a.Model == b.Model && a.BaseURL == b.BaseURL
}
