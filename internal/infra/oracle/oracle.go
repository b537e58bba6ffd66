// Package oracle adapts LLM provider SDKs to the domain.Oracle contract.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/telemetry"
)

// reply is a provider completion with optional token accounting.
type reply struct {
	Text   string
	Tokens int
}

// provider is implemented by each SDK adapter.
type provider interface {
	generate(ctx context.Context, messages []domain.Message, temperature float64) (reply, error)
}

// Client applies timeouts, error classification, logging and metrics around a provider.
type Client struct {
	provider     provider
	providerName string
	model        string
	timeout      time.Duration
	metrics      domain.Metrics
	logger       *zap.Logger
}

// New builds the oracle selected by cfg. A positive CacheSize wraps the
// client in an LRU reply cache.
func New(ctx context.Context, cfg domain.OracleConfig, metrics domain.Metrics, logger *zap.Logger) (domain.Oracle, error) {
	p, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := newClient(p, cfg, metrics, logger)
	if cfg.CacheSize > 0 {
		return NewCached(client, cfg.CacheSize)
	}
	return client, nil
}

func newClient(p provider, cfg domain.OracleConfig, metrics domain.Metrics, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	providerName := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if providerName == "" {
		providerName = domain.DefaultOracleProvider
	}
	return &Client{
		provider:     p,
		providerName: providerName,
		model:        cfg.Model,
		timeout:      cfg.Timeout(),
		metrics:      metrics,
		logger:       logger.Named("oracle"),
	}
}

func newProvider(ctx context.Context, cfg domain.OracleConfig) (provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai", "":
		apiKey, err := resolveAPIKey(cfg, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return newEinoProvider(ctx, cfg, apiKey)
	case "anthropic":
		apiKey, err := resolveAPIKey(cfg, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return newAnthropicProvider(cfg, apiKey), nil
	case "gemini":
		apiKey, err := resolveAPIKey(cfg, "GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		return newGeminiProvider(ctx, cfg, apiKey)
	case "ollama":
		return newOllamaProvider(cfg)
	case "azure":
		apiKey, err := resolveAPIKey(cfg, "AZURE_OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return newAzureProvider(cfg, apiKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// resolveAPIKey prefers the literal key, then the configured env var, then
// the provider's conventional env var.
func resolveAPIKey(cfg domain.OracleConfig, fallbackEnv string) (string, error) {
	if apiKey := strings.TrimSpace(cfg.APIKey); apiKey != "" {
		return apiKey, nil
	}
	envVar := strings.TrimSpace(cfg.APIKeyEnvVar)
	if envVar == "" {
		envVar = fallbackEnv
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return "", fmt.Errorf("API key not found in env var %s: set oracle.apiKey or oracle.apiKeyEnvVar", envVar)
	}
	return apiKey, nil
}

// Complete implements domain.Oracle.
func (c *Client) Complete(ctx context.Context, messages []domain.Message, temperature float64) (string, error) {
	const op = "oracle.Complete"
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	purpose := domain.OraclePurposeFrom(ctx)
	started := time.Now()
	out, err := c.provider.generate(ctx, messages, temperature)
	duration := time.Since(started)

	c.metrics.ObserveOracle(domain.OracleMetric{
		Provider: c.providerName,
		Model:    c.model,
		Purpose:  purpose,
		Duration: duration,
		Tokens:   out.Tokens,
		Err:      err,
	})
	if err != nil {
		logger := telemetry.LoggerWithRequest(ctx, c.logger)
		logger.Warn("oracle call failed",
			zap.String("provider", c.providerName),
			zap.String("purpose", string(purpose)),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		return "", classify(op, err)
	}
	return out.Text, nil
}

// Provider returns the normalized provider name.
func (c *Client) Provider() string {
	return c.providerName
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

func classify(op string, err error) *domain.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.E(domain.CodeOracleError, op, "oracle timed out", errors.Join(domain.ErrOracleUnavailable, err))
	case errors.Is(err, context.Canceled):
		return domain.E(domain.CodeOracleError, op, "oracle call canceled", errors.Join(domain.ErrOracleUnavailable, err))
	default:
		return domain.E(domain.CodeOracleError, op, err.Error(), errors.Join(domain.ErrOracleUnavailable, err))
	}
}

// splitSystem separates system instructions from the conversation turns.
func splitSystem(messages []domain.Message) (string, []domain.Message) {
	var system []string
	turns := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
