package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/clearcanon/clarify/internal/config"
)

// ErrSelfAudit is returned when the audit client configuration matches the
// rewrite client configuration. The no-self-audit rule is enforced here
// structurally, not by convention.
var ErrSelfAudit = errors.New("audit provider must differ from rewrite provider")

// Registry holds the pipeline's inference paths: the batch client candidates
// are generated through, the synchronous audit client, and the synchronous
// corrector. The corrector runs on the rewrite provider's decision process,
// so every correction is still re-audited by an independent one.
type Registry struct {
	rewrite    BatchClient
	auditBatch BatchClient
	audit      LLMClient
	corrector  LLMClient

	rewriteModel string
	auditModel   string
}

// NewRegistry builds clients from configuration. It fails when the two
// provider configs describe the same decision process.
func NewRegistry(cfg config.ProvidersCfg) (*Registry, error) {
	if config.SameDecisionProcess(cfg.Rewrite, cfg.Audit) {
		return nil, fmt.Errorf("%w: both are %s/%s", ErrSelfAudit, cfg.Rewrite.Type, cfg.Rewrite.Model)
	}

	rewrite, err := buildBatchClient(cfg.Rewrite.Resolved())
	if err != nil {
		return nil, fmt.Errorf("rewrite provider: %w", err)
	}
	audit, err := buildChatClient(cfg.Audit.Resolved())
	if err != nil {
		return nil, fmt.Errorf("audit provider: %w", err)
	}

	return &Registry{
		rewrite:      rewrite,
		auditBatch:   NewChatBatchAdapter(audit, 4),
		audit:        audit,
		corrector:    buildCorrector(cfg.Rewrite.Resolved()),
		rewriteModel: cfg.Rewrite.Model,
		auditModel:   cfg.Audit.Model,
	}, nil
}

// NewRegistryWithClients wires pre-built clients, used by tests with mocks.
func NewRegistryWithClients(rewrite, auditBatch BatchClient, audit, corrector LLMClient) *Registry {
	return &Registry{rewrite: rewrite, auditBatch: auditBatch, audit: audit, corrector: corrector}
}

// Rewrite returns the batch client for candidate generation.
func (r *Registry) Rewrite() BatchClient {
	return r.rewrite
}

// AuditBatch returns the batch-shaped path to the audit provider. Audit
// verdicts for a chapter are submitted as one job like rewrites are.
func (r *Registry) AuditBatch() BatchClient {
	return r.auditBatch
}

// Audit returns the synchronous client for verdicts.
func (r *Registry) Audit() LLMClient {
	return r.audit
}

// Corrector returns the synchronous client that produces violation-scoped
// fixes. It shares the rewrite provider's model and endpoint.
func (r *Registry) Corrector() LLMClient {
	return r.corrector
}

// RewriteModel returns the configured rewrite model name.
func (r *Registry) RewriteModel() string {
	return r.rewriteModel
}

// AuditModel returns the configured audit model name.
func (r *Registry) AuditModel() string {
	return r.auditModel
}

func buildBatchClient(cfg config.ProviderCfg) (BatchClient, error) {
	switch cfg.Type {
	case "openai-batch":
		return NewOpenAIBatchClient(OpenAIBatchConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			BaseURL:    cfg.BaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown batch provider type: %q", cfg.Type)
	}
}

// buildCorrector makes a synchronous chat client out of the rewrite
// provider's credentials. The batch provider's base URL serves the same
// /chat/completions endpoint when called directly.
func buildCorrector(cfg config.ProviderCfg) LLMClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return NewChatClient(ChatConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
		RPM:          cfg.RateLimit,
		MaxRetries:   cfg.MaxRetries,
	})
}

func buildChatClient(cfg config.ProviderCfg) (LLMClient, error) {
	switch cfg.Type {
	case "chat":
		return NewChatClient(ChatConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
			RPM:          cfg.RateLimit,
			MaxRetries:   cfg.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown chat provider type: %q", cfg.Type)
	}
}
