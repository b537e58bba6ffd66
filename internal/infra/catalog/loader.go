package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tooldispatch/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setConfigDefaults(v)
	return v
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("oracle.provider", domain.DefaultOracleProvider)
	v.SetDefault("oracle.model", domain.DefaultOracleModel)
	v.SetDefault("oracle.temperature", domain.DefaultOracleTemperature)
	v.SetDefault("oracle.timeoutSeconds", domain.DefaultOracleTimeoutSeconds)
	v.SetDefault("oracle.maxTokens", domain.DefaultOracleMaxTokens)
	v.SetDefault("catalog.metadataPrimary", string(domain.DefaultMetadataPrimary))
	v.SetDefault("dispatch.filterConcurrency", domain.DefaultFilterConcurrency)
	v.SetDefault("dispatch.toolTimeoutSeconds", domain.DefaultToolTimeoutSeconds)
	v.SetDefault("dispatch.maxTurns", domain.DefaultMaxTurns)
	v.SetDefault("dispatch.pinnedArgument", domain.DefaultPinnedArgument)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
}

type rawConfig struct {
	Oracle        rawOracleConfig        `mapstructure:"oracle"`
	Catalog       rawCatalogConfig       `mapstructure:"catalog"`
	Dispatch      rawDispatchConfig      `mapstructure:"dispatch"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
	Journal       rawJournalConfig       `mapstructure:"journal"`
	MCPServers    []rawMCPServer         `mapstructure:"mcpServers"`
	Tools         []rawTool              `mapstructure:"tools"`
	Agents        []rawTool              `mapstructure:"agents"`
}

type rawOracleConfig struct {
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	APIKey         string  `mapstructure:"apiKey"`
	APIKeyEnvVar   string  `mapstructure:"apiKeyEnvVar"`
	BaseURL        string  `mapstructure:"baseURL"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeoutSeconds"`
	CacheSize      int     `mapstructure:"cacheSize"`
	MaxTokens      int     `mapstructure:"maxTokens"`
}

type rawCatalogConfig struct {
	MetadataPrimary string   `mapstructure:"metadataPrimary"`
	ToolFiles       []string `mapstructure:"toolFiles"`
	Watch           bool     `mapstructure:"watch"`
}

type rawDispatchConfig struct {
	FilterConcurrency  int    `mapstructure:"filterConcurrency"`
	ToolTimeoutSeconds int    `mapstructure:"toolTimeoutSeconds"`
	MaxTurns           int    `mapstructure:"maxTurns"`
	PinnedArgument     string `mapstructure:"pinnedArgument"`

	StepRequiresCandidate bool `mapstructure:"stepRequiresCandidate"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	Metrics       bool   `mapstructure:"metrics"`
	Healthz       bool   `mapstructure:"healthz"`
}

type rawJournalConfig struct {
	Path string `mapstructure:"path"`
}

type rawMCPServer struct {
	Name     string            `mapstructure:"name"`
	Cmd      []string          `mapstructure:"cmd"`
	Env      map[string]string `mapstructure:"env"`
	Cwd      string            `mapstructure:"cwd"`
	Endpoint string            `mapstructure:"endpoint"`
	Headers  map[string]string `mapstructure:"headers"`
	Disabled bool              `mapstructure:"disabled"`
}

var supportedProviders = map[string]struct{}{
	"openai":    {},
	"anthropic": {},
	"gemini":    {},
	"ollama":    {},
	"azure":     {},
}

// Load reads, expands and validates the config file at path. Every
// validation problem is reported in one joined error.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	if path == "" {
		return domain.Config{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	}

	expanded, missing, err := expandYAML(data)
	if err != nil {
		return domain.Config{}, err
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config", zap.String("path", path), zap.Strings("missing", missing))
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Config{}, fmt.Errorf("parse config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	cfg, errs := normalizeConfig(raw, filepath.Dir(path))
	if len(errs) > 0 {
		return domain.Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func normalizeConfig(raw rawConfig, baseDir string) (domain.Config, []string) {
	var errs []string

	oracle := domain.OracleConfig{
		Provider:       strings.ToLower(strings.TrimSpace(raw.Oracle.Provider)),
		Model:          strings.TrimSpace(raw.Oracle.Model),
		APIKey:         raw.Oracle.APIKey,
		APIKeyEnvVar:   strings.TrimSpace(raw.Oracle.APIKeyEnvVar),
		BaseURL:        strings.TrimSpace(raw.Oracle.BaseURL),
		Temperature:    raw.Oracle.Temperature,
		TimeoutSeconds: raw.Oracle.TimeoutSeconds,
		CacheSize:      raw.Oracle.CacheSize,
		MaxTokens:      raw.Oracle.MaxTokens,
	}
	if _, ok := supportedProviders[oracle.Provider]; !ok {
		errs = append(errs, fmt.Sprintf("oracle.provider must be one of openai, anthropic, gemini, ollama, azure (got %q)", raw.Oracle.Provider))
	}
	if oracle.Temperature < 0 || oracle.Temperature > 2 {
		errs = append(errs, "oracle.temperature must be between 0 and 2")
	}
	if oracle.TimeoutSeconds <= 0 {
		errs = append(errs, "oracle.timeoutSeconds must be > 0")
	}
	if oracle.CacheSize < 0 {
		errs = append(errs, "oracle.cacheSize must be >= 0")
	}
	if oracle.Provider == "azure" && oracle.BaseURL == "" {
		errs = append(errs, "oracle.baseURL is required for azure")
	}

	primary := domain.SourceKind(strings.ToLower(strings.TrimSpace(raw.Catalog.MetadataPrimary)))
	if !primary.Valid() {
		errs = append(errs, fmt.Sprintf("catalog.metadataPrimary must be declarative or programmatic (got %q)", raw.Catalog.MetadataPrimary))
	}
	toolFiles := make([]string, 0, len(raw.Catalog.ToolFiles))
	for i, file := range raw.Catalog.ToolFiles {
		file = strings.TrimSpace(file)
		if file == "" {
			errs = append(errs, fmt.Sprintf("catalog.toolFiles[%d] must not be empty", i))
			continue
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}
		toolFiles = append(toolFiles, file)
	}

	dispatch := domain.DispatchConfig{
		FilterConcurrency:  raw.Dispatch.FilterConcurrency,
		ToolTimeoutSeconds: raw.Dispatch.ToolTimeoutSeconds,
		MaxTurns:           raw.Dispatch.MaxTurns,
		PinnedArgument:     strings.TrimSpace(raw.Dispatch.PinnedArgument),

		StepRequiresCandidate: raw.Dispatch.StepRequiresCandidate,
	}
	if dispatch.FilterConcurrency < 1 {
		errs = append(errs, "dispatch.filterConcurrency must be >= 1")
	}
	if dispatch.ToolTimeoutSeconds <= 0 {
		errs = append(errs, "dispatch.toolTimeoutSeconds must be > 0")
	}
	if dispatch.MaxTurns < 1 {
		errs = append(errs, "dispatch.maxTurns must be >= 1")
	}
	if dispatch.PinnedArgument == "" {
		dispatch.PinnedArgument = domain.DefaultPinnedArgument
	}

	servers := make([]domain.MCPServerSpec, 0, len(raw.MCPServers))
	names := make(map[string]struct{}, len(raw.MCPServers))
	for i, s := range raw.MCPServers {
		spec := domain.MCPServerSpec{
			Name:     strings.TrimSpace(s.Name),
			Cmd:      s.Cmd,
			Env:      s.Env,
			Cwd:      s.Cwd,
			Endpoint: strings.TrimSpace(s.Endpoint),
			Headers:  s.Headers,
			Disabled: s.Disabled,
		}
		errs = append(errs, validateMCPServer(spec, i, names)...)
		servers = append(servers, spec)
	}

	tools := normalizeTools(append(raw.Tools, raw.Agents...))
	errs = append(errs, validateTools("tools", tools)...)

	return domain.Config{
		Oracle: oracle,
		Catalog: domain.CatalogConfig{
			MetadataPrimary: primary,
			ToolFiles:       toolFiles,
			Watch:           raw.Catalog.Watch,
		},
		Dispatch: dispatch,
		Observability: domain.ObservabilityConfig{
			ListenAddress: strings.TrimSpace(raw.Observability.ListenAddress),
			Metrics:       raw.Observability.Metrics,
			Healthz:       raw.Observability.Healthz,
		},
		Journal:    domain.JournalConfig{Path: strings.TrimSpace(raw.Journal.Path)},
		MCPServers: servers,
		Tools:      tools,
	}, errs
}

func validateMCPServer(spec domain.MCPServerSpec, index int, names map[string]struct{}) []string {
	var errs []string
	if spec.Name == "" {
		errs = append(errs, fmt.Sprintf("mcpServers[%d]: name is required", index))
	} else if _, dup := names[spec.Name]; dup {
		errs = append(errs, fmt.Sprintf("mcpServers[%d]: duplicate name %q", index, spec.Name))
	} else {
		names[spec.Name] = struct{}{}
	}
	switch {
	case spec.Endpoint != "" && len(spec.Cmd) > 0:
		errs = append(errs, fmt.Sprintf("mcpServers[%d]: cmd and endpoint are mutually exclusive", index))
	case spec.Endpoint == "" && len(spec.Cmd) == 0:
		errs = append(errs, fmt.Sprintf("mcpServers[%d]: cmd or endpoint is required", index))
	}
	if spec.Endpoint != "" && !strings.HasPrefix(spec.Endpoint, "http://") && !strings.HasPrefix(spec.Endpoint, "https://") {
		errs = append(errs, fmt.Sprintf("mcpServers[%d]: endpoint must be an http(s) URL", index))
	}
	return errs
}
