package domain

import "time"

// Config is the normalized runtime configuration.
type Config struct {
	Oracle        OracleConfig
	Catalog       CatalogConfig
	Dispatch      DispatchConfig
	Observability ObservabilityConfig
	Journal       JournalConfig
	MCPServers    []MCPServerSpec
	// Tools is the declarative tool source embedded in the config file.
	Tools []ToolDescriptor
}

// OracleConfig selects and tunes the reasoning oracle.
type OracleConfig struct {
	Provider       string
	Model          string
	APIKey         string
	APIKeyEnvVar   string
	BaseURL        string
	Temperature    float64
	TimeoutSeconds int
	CacheSize      int
	MaxTokens      int
}

// Timeout returns the per-call oracle deadline.
func (c OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CatalogConfig controls catalogue construction.
type CatalogConfig struct {
	MetadataPrimary SourceKind
	ToolFiles       []string
	Watch           bool
}

// DispatchConfig tunes the dispatchers and the control loop.
type DispatchConfig struct {
	FilterConcurrency  int
	ToolTimeoutSeconds int
	MaxTurns           int
	PinnedArgument     string
	// StepRequiresCandidate makes Step answer no_available_agent, without
	// planning, when the filter finds no available tool.
	StepRequiresCandidate bool
}

// ToolTimeout returns the per-invocation deadline.
func (c DispatchConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

type ObservabilityConfig struct {
	ListenAddress string
	Metrics       bool
	Healthz       bool
}

type JournalConfig struct {
	Path string
}

// MCPServerSpec declares an MCP server whose tools join the catalogue.
type MCPServerSpec struct {
	Name     string
	Cmd      []string
	Env      map[string]string
	Cwd      string
	Endpoint string
	Headers  map[string]string
	Disabled bool
}

// UsesHTTP reports whether the server is reached over streamable HTTP.
func (s MCPServerSpec) UsesHTTP() bool {
	return s.Endpoint != ""
}
