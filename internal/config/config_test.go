package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.EscalationThresholdPct != 5.0 {
		t.Errorf("EscalationThresholdPct = %v, want 5.0", cfg.Pipeline.EscalationThresholdPct)
	}
	if cfg.Pipeline.MaxConsecutiveChapterFailures != 3 {
		t.Errorf("MaxConsecutiveChapterFailures = %d, want 3", cfg.Pipeline.MaxConsecutiveChapterFailures)
	}
	if cfg.Providers.Rewrite.Type != "openai-batch" {
		t.Errorf("Rewrite.Type = %q", cfg.Providers.Rewrite.Type)
	}
	if cfg.Providers.Audit.Type != "chat" {
		t.Errorf("Audit.Type = %q", cfg.Providers.Audit.Type)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Run("self-audit rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.Audit = cfg.Providers.Rewrite
		err := Validate(cfg)
		if err == nil {
			t.Fatal("expected error for identical rewrite/audit providers")
		}
		if !strings.Contains(err.Error(), "certify its own output") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("same type different model allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.Audit.Type = cfg.Providers.Rewrite.Type
		cfg.Providers.Audit.Model = "gpt-4o-mini"
		cfg.Providers.Audit.BaseURL = ""
		if err := Validate(cfg); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Pipeline.EscalationThresholdPct = 120
		if err := Validate(cfg); err == nil {
			t.Error("expected error for threshold > 100")
		}
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.Audit.Model = ""
		if err := Validate(cfg); err == nil {
			t.Error("expected error for empty audit model")
		}
	})

	t.Run("unknown provider type", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Providers.Rewrite.Type = "carrier-pigeon"
		if err := Validate(cfg); err == nil {
			t.Error("expected error for unknown provider type")
		}
	})
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("CLARIFY_TEST_KEY", "sk-12345")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"env reference", "${CLARIFY_TEST_KEY}", "sk-12345"},
		{"plain value", "literal-key", "literal-key"},
		{"empty", "", ""},
		{"unset var", "${CLARIFY_TEST_UNSET}", ""},
		{"embedded", "prefix-${CLARIFY_TEST_KEY}-suffix", "prefix-sk-12345-suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# Clarify configuration") {
		t.Error("missing header comment")
	}
	for _, want := range []string{"rewrite:", "audit:", "escalation_threshold_pct: 5", "${OPENAI_API_KEY}"} {
		if !strings.Contains(content, want) {
			t.Errorf("config missing %q", want)
		}
	}
}

func TestSameDecisionProcess(t *testing.T) {
	a := ProviderCfg{Type: "chat", Model: "m1", BaseURL: "https://x", APIKey: "k1"}
	b := a
	b.APIKey = "k2"
	if !SameDecisionProcess(a, b) {
		t.Error("credentials alone should not distinguish decision processes")
	}
	b.Model = "m2"
	if SameDecisionProcess(a, b) {
		t.Error("different models are distinct decision processes")
	}
}
