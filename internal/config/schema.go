package config

// Config holds clarify configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Providers ProvidersCfg `mapstructure:"providers" yaml:"providers" json:"providers"`
	Pipeline  PipelineCfg  `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Corpus    CorpusCfg    `mapstructure:"corpus" yaml:"corpus" json:"corpus"`
}

// ProvidersCfg configures the two inference paths. The rewrite and audit
// configurations must differ: a generator never certifies its own output,
// and the registry rejects identical configs at construction time.
type ProvidersCfg struct {
	Rewrite ProviderCfg `mapstructure:"rewrite" yaml:"rewrite" json:"rewrite"`
	Audit   ProviderCfg `mapstructure:"audit" yaml:"audit" json:"audit"`
}

// ProviderCfg configures a single inference provider.
type ProviderCfg struct {
	Type       string  `mapstructure:"type" yaml:"type" json:"type"`                      // "openai-batch", "chat"
	Model      string  `mapstructure:"model" yaml:"model" json:"model"`                   // Model name
	APIKey     string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`             // Supports ${ENV_VAR} syntax
	BaseURL    string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`          // Optional override
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`    // Requests per minute (chat only)
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"` // Transport retry attempts
	TimeoutSec int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// PipelineCfg holds run tuning parameters.
type PipelineCfg struct {
	// Segment is the corpus segment processed by default.
	Segment string `mapstructure:"segment" yaml:"segment" json:"segment"`

	// EscalationThresholdPct halts the run before the next book when a
	// book's escalation ratio exceeds it. Default 5.0.
	EscalationThresholdPct float64 `mapstructure:"escalation_threshold_pct" yaml:"escalation_threshold_pct" json:"escalation_threshold_pct"`

	// MaxConsecutiveChapterFailures aborts the run after this many
	// chapter-level rewrite failures in a row. Default 3.
	MaxConsecutiveChapterFailures int `mapstructure:"max_consecutive_chapter_failures" yaml:"max_consecutive_chapter_failures" json:"max_consecutive_chapter_failures"`

	// PollIntervalSec is the fixed batch-status polling interval.
	PollIntervalSec int `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds" json:"poll_interval_seconds"`

	// PollMaxAttempts bounds the polling loop before the job is declared
	// failed. Default 120 attempts (~1h at the default interval).
	PollMaxAttempts int `mapstructure:"poll_max_attempts" yaml:"poll_max_attempts" json:"poll_max_attempts"`

	// CorrectionWorkers caps concurrent correction-stage calls.
	CorrectionWorkers int `mapstructure:"correction_workers" yaml:"correction_workers" json:"correction_workers"`
}

// CorpusCfg holds corpus store connection and container configuration.
type CorpusCfg struct {
	// URL is the corpus store HTTP endpoint.
	URL string `mapstructure:"url" yaml:"url" json:"url"`

	// ContainerName is the local store container name (default: clarify-store).
	ContainerName string `mapstructure:"container_name" yaml:"container_name" json:"container_name"`

	// Image is the store image to run locally.
	Image string `mapstructure:"image" yaml:"image" json:"image"`

	// Port is the host port to bind (default: 9181).
	Port string `mapstructure:"port" yaml:"port" json:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersCfg{
			Rewrite: ProviderCfg{
				Type:       "openai-batch",
				Model:      "gpt-4o",
				APIKey:     "${OPENAI_API_KEY}",
				MaxRetries: 3,
				TimeoutSec: 300,
			},
			Audit: ProviderCfg{
				Type:       "chat",
				Model:      "anthropic/claude-sonnet-4",
				APIKey:     "${OPENROUTER_API_KEY}",
				BaseURL:    "https://openrouter.ai/api/v1",
				RateLimit:  60.0,
				MaxRetries: 3,
				TimeoutSec: 120,
			},
		},
		Pipeline: PipelineCfg{
			Segment:                       "ot",
			EscalationThresholdPct:        5.0,
			MaxConsecutiveChapterFailures: 3,
			PollIntervalSec:               30,
			PollMaxAttempts:               120,
			CorrectionWorkers:             4,
		},
		Corpus: CorpusCfg{
			URL:           "http://localhost:9181",
			ContainerName: "clarify-store",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
	}
}
