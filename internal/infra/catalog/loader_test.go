package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tooldispatch/internal/domain"
)

func TestLoader_Defaults(t *testing.T) {
	file := writeTempConfig(t, `
tools:
  - id: weather
    description: Look up the weather
    parameters:
      - name: city
        type: str
`)

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultOracleProvider, cfg.Oracle.Provider)
	assert.Equal(t, domain.DefaultOracleModel, cfg.Oracle.Model)
	assert.Equal(t, domain.DefaultOracleTimeoutSeconds, cfg.Oracle.TimeoutSeconds)
	assert.Equal(t, domain.DefaultMetadataPrimary, cfg.Catalog.MetadataPrimary)
	assert.Equal(t, domain.DefaultFilterConcurrency, cfg.Dispatch.FilterConcurrency)
	assert.Equal(t, domain.DefaultToolTimeoutSeconds, cfg.Dispatch.ToolTimeoutSeconds)
	assert.Equal(t, domain.DefaultMaxTurns, cfg.Dispatch.MaxTurns)
	assert.Equal(t, domain.DefaultPinnedArgument, cfg.Dispatch.PinnedArgument)
	assert.Equal(t, domain.DefaultObservabilityListenAddress, cfg.Observability.ListenAddress)

	want := []domain.ToolDescriptor{{
		ID:          "weather",
		Name:        "weather",
		Description: "Look up the weather",
		Parameters:  []domain.ParameterSpec{{Name: "city", Type: domain.ParamString}},
	}}
	if diff := cmp.Diff(want, cfg.Tools); diff != "" {
		t.Fatalf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_FullConfig(t *testing.T) {
	file := writeTempConfig(t, `
oracle:
  provider: Anthropic
  model: claude-sonnet
  temperature: 0.2
  timeoutSeconds: 10
  cacheSize: 64
catalog:
  metadataPrimary: programmatic
  toolFiles: ["extra/tools.yaml"]
  watch: true
dispatch:
  filterConcurrency: 8
  toolTimeoutSeconds: 5
  maxTurns: 3
  stepRequiresCandidate: true
journal:
  path: /tmp/journal.db
mcpServers:
  - name: files
    cmd: ["mcp-files", "--root", "."]
  - name: remote
    endpoint: https://example.com/mcp
agents:
  - id: agent_a
    name: A Agent
`)

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, 0.2, cfg.Oracle.Temperature)
	assert.Equal(t, 64, cfg.Oracle.CacheSize)
	assert.Equal(t, domain.SourceProgrammatic, cfg.Catalog.MetadataPrimary)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(file), "extra", "tools.yaml")}, cfg.Catalog.ToolFiles)
	assert.True(t, cfg.Catalog.Watch)
	assert.Equal(t, 8, cfg.Dispatch.FilterConcurrency)
	assert.Equal(t, 3, cfg.Dispatch.MaxTurns)
	assert.True(t, cfg.Dispatch.StepRequiresCandidate)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
	require.Len(t, cfg.MCPServers, 2)
	assert.False(t, cfg.MCPServers[0].UsesHTTP())
	assert.True(t, cfg.MCPServers[1].UsesHTTP())
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "agent_a", cfg.Tools[0].ID)
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("TD_MODEL", "gpt-test")
	t.Setenv("TD_TURNS", "7")
	file := writeTempConfig(t, `
oracle:
  model: ${TD_MODEL}
  apiKey: "${TD_UNSET_KEY}"
dispatch:
  maxTurns: ${TD_TURNS}
`)

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.Oracle.Model)
	assert.Equal(t, 7, cfg.Dispatch.MaxTurns)
	assert.Empty(t, cfg.Oracle.APIKey)
}

func TestLoader_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		config string
		want   string
	}{
		{
			name:   "unknown provider",
			config: "oracle:\n  provider: bogus\n",
			want:   "oracle.provider",
		},
		{
			name:   "bad primary",
			config: "catalog:\n  metadataPrimary: both\n",
			want:   "catalog.metadataPrimary",
		},
		{
			name:   "zero concurrency",
			config: "dispatch:\n  filterConcurrency: 0\n",
			want:   "dispatch.filterConcurrency must be >= 1",
		},
		{
			name:   "negative timeout",
			config: "dispatch:\n  toolTimeoutSeconds: -1\n",
			want:   "dispatch.toolTimeoutSeconds",
		},
		{
			name:   "duplicate tool",
			config: "tools:\n  - id: a\n  - id: a\n",
			want:   `duplicate id "a"`,
		},
		{
			name:   "bad param type",
			config: "tools:\n  - id: a\n    parameters:\n      - name: x\n        type: list\n",
			want:   "tools[0]",
		},
		{
			name:   "mcp server without transport",
			config: "mcpServers:\n  - name: x\n",
			want:   "cmd or endpoint is required",
		},
		{
			name:   "azure without base url",
			config: "oracle:\n  provider: azure\n",
			want:   "oracle.baseURL is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file := writeTempConfig(t, tc.config)
			_, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoader_CollectsAllErrors(t *testing.T) {
	file := writeTempConfig(t, `
oracle:
  provider: bogus
dispatch:
  maxTurns: 0
`)
	_, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle.provider")
	assert.Contains(t, err.Error(), "; dispatch.maxTurns")
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	_, err = NewLoader(nil).Load(context.Background(), "")
	require.Error(t, err)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	return writeTempFile(t, "tooldispatch.yaml", content)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
