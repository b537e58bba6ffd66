package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/builtin"
	"tooldispatch/internal/infra/catalog"
	"tooldispatch/internal/infra/dispatch"
	"tooldispatch/internal/infra/journal"
	"tooldispatch/internal/infra/telemetry"
)

// scriptedOracle answers extraction prompts with "{}" and step prompts with
// the next scripted reply. The last reply repeats once the script runs out.
type scriptedOracle struct {
	mu    sync.Mutex
	steps []string
	calls int
}

func (s *scriptedOracle) Complete(ctx context.Context, _ []domain.Message, _ float64) (string, error) {
	if domain.OraclePurposeFrom(ctx) == domain.PurposeExtract {
		return "{}", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.calls++
	return s.steps[idx], nil
}

func newTestApplication(t *testing.T, llm domain.Oracle, store *journal.Store) *Application {
	t.Helper()
	ctx := context.Background()
	registry, err := builtin.NewRegistry(builtin.Options{})
	require.NoError(t, err)
	provider := catalog.NewProvider(ctx, []catalog.Source{registry}, catalog.ProviderOptions{}, zap.NewNop())
	return NewApplication(ApplicationOptions{
		Config:     domain.Config{Dispatch: domain.DispatchConfig{MaxTurns: 4}},
		Logger:     zap.NewNop(),
		Provider:   provider,
		Dispatcher: dispatch.New(llm, nil, nil, zap.NewNop(), dispatch.Options{}),
		Journal:    store,
	})
}

func openJournal(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRun_StopsOnFinish(t *testing.T) {
	llm := &scriptedOracle{steps: []string{
		`{"action":"call_tool","tool_id":"add","parameters":{"a":1,"b":2},"reason":"sum first"}`,
		`{"action":"call_tool","tool_id":"echo","parameters":{"text":"3"}}`,
		`{"action":"finish","reason":"all done"}`,
	}}
	store := openJournal(t)
	app := newTestApplication(t, llm, store)

	result := app.Run(context.Background(), "add 1 and 2 then say it", 0)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, "add", result.Steps[0].ToolID)
	assert.Equal(t, int64(3), result.Steps[0].Result)
	assert.Equal(t, "sum first", result.Steps[0].Reason)
	assert.Equal(t, "echo", result.Steps[1].ToolID)
	assert.Equal(t, "3", result.Steps[1].Result)
	assert.Equal(t, domain.OutcomeFinish, result.Final.Kind)
	assert.Equal(t, "all done", result.Final.Reason)

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	ids := map[string]struct{}{}
	for _, entry := range entries {
		assert.Equal(t, domain.ModeStep, entry.Mode)
		ids[entry.ID] = struct{}{}
	}
	assert.Len(t, ids, 3)
	assert.Len(t, entries[0].History, 2)
}

func TestRun_StopConditions(t *testing.T) {
	cases := []struct {
		name      string
		steps     []string
		maxTurns  int
		wantSteps int
		wantKind  domain.OutcomeKind
		wantCode  domain.ErrorCode
		wantWhy   string
	}{
		{
			name: "max turns",
			steps: []string{
				`{"action":"call_tool","tool_id":"add","parameters":{"a":1,"b":1}}`,
				`{"action":"call_tool","tool_id":"add","parameters":{"a":2,"b":1}}`,
				`{"action":"call_tool","tool_id":"add","parameters":{"a":3,"b":1}}`,
			},
			maxTurns:  2,
			wantSteps: 2,
			wantKind:  domain.OutcomeFinish,
			wantWhy:   domain.MaxTurnsReason,
		},
		{
			name: "configured max turns",
			steps: []string{
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"again"}}`,
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"and again"}}`,
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"once more"}}`,
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"last"}}`,
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"over"}}`,
			},
			wantSteps: 4,
			wantKind:  domain.OutcomeFinish,
			wantWhy:   domain.MaxTurnsReason,
		},
		{
			name: "redundant step",
			steps: []string{
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"hi"}}`,
				`{"action":"call_tool","tool_id":"echo","parameters":{"text":"hi"}}`,
			},
			maxTurns:  5,
			wantSteps: 1,
			wantKind:  domain.OutcomeFinish,
			wantWhy:   domain.RedundantStepReason,
		},
		{
			name:      "error outcome",
			steps:     []string{`{"action":"call_tool","tool_id":"ghost","parameters":{}}`},
			maxTurns:  5,
			wantSteps: 0,
			wantKind:  domain.OutcomeError,
			wantCode:  domain.CodeToolNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApplication(t, &scriptedOracle{steps: tc.steps}, nil)
			result := app.Run(context.Background(), "goal", tc.maxTurns)
			assert.Len(t, result.Steps, tc.wantSteps)
			assert.Equal(t, tc.wantKind, result.Final.Kind)
			assert.Equal(t, tc.wantCode, result.Final.Code)
			assert.Equal(t, tc.wantWhy, result.Final.Reason)
		})
	}
}

func TestRun_CanceledContext(t *testing.T) {
	app := newTestApplication(t, &scriptedOracle{steps: []string{`{"action":"finish"}`}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := app.Run(ctx, "goal", 3)
	assert.Empty(t, result.Steps)
	assert.Equal(t, domain.OutcomeError, result.Final.Kind)
	assert.Equal(t, domain.CodeCanceled, result.Final.Code)
}

func TestApplication_DispatchRecordsJournal(t *testing.T) {
	store := openJournal(t)
	app := newTestApplication(t, &scriptedOracle{steps: []string{"unused"}}, store)

	outcome := app.Dispatch(context.Background(), "[echo] hello there")
	require.Equal(t, domain.OutcomeResult, outcome.Kind, outcome.Message)
	assert.Equal(t, "hello there", outcome.Result)

	invoked := app.Invoke(context.Background(), "add", map[string]any{"a": 2, "b": 2})
	require.Equal(t, domain.OutcomeResult, invoked.Kind, invoked.Message)

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ModeDirect, entries[0].Mode)
	assert.Equal(t, "add", entries[0].Request)
	assert.Equal(t, domain.ModePinned, entries[1].Mode)
	assert.Equal(t, outcome.Trace.RequestID, entries[1].ID)
}

func TestNewOracle_FallsBackWhenUnavailable(t *testing.T) {
	t.Setenv("TOOLDISPATCH_TEST_MISSING_KEY", "")
	health := telemetry.NewHealthTracker()
	llm := NewOracle(context.Background(), domain.Config{Oracle: domain.OracleConfig{
		Provider:       "anthropic",
		Model:          "claude",
		APIKeyEnvVar:   "TOOLDISPATCH_TEST_MISSING_KEY",
		TimeoutSeconds: 1,
	}}, nil, health, zap.NewNop())
	require.NotNil(t, llm)

	_, err := llm.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}}, 0)
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeOracleError, code)

	report := health.Report()
	assert.Equal(t, "error", report.Components["oracle"].Status)
}

func TestInitializeApplication(t *testing.T) {
	dir := t.TempDir()
	toolFile := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(toolFile, []byte(strings.TrimSpace(`
tools:
  - id: weather
    description: Current weather for a city
    parameters:
      - name: city
        type: string
`)), 0o600))
	configPath := filepath.Join(dir, "tooldispatch.yaml")
	config := fmt.Sprintf(`
oracle:
  provider: ollama
  model: llama3
catalog:
  toolFiles: [tools.yaml]
journal:
  path: %s
tools:
  - id: echo
    description: Repeat text back, as documented by the config
    parameters:
      - name: text
        type: string
`, filepath.Join(dir, "journal.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))

	app, cleanup, err := InitializeApplication(context.Background(), ServeConfig{ConfigPath: configPath}, LoggingConfig{Logger: zap.NewNop()})
	require.NoError(t, err)
	defer cleanup()

	cat := app.Catalog()
	assert.Equal(t, []string{"add", "echo", "llm_query", "weather"}, cat.ListIDs())

	echo, ok := cat.Get("echo")
	require.True(t, ok)
	assert.True(t, echo.Invocable())
	assert.Equal(t, "Repeat text back, as documented by the config", echo.Description)

	weather, ok := cat.Get("weather")
	require.True(t, ok)
	assert.False(t, weather.Invocable())
	require.NotNil(t, app.Journal())
}

func TestInitializeApplication_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "tooldispatch.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("oracle:\n  provider: carrier-pigeon\n"), 0o600))

	_, _, err := InitializeApplication(context.Background(), ServeConfig{ConfigPath: configPath}, LoggingConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestApplication_ServeOverMCP(t *testing.T) {
	app := newTestApplication(t, &scriptedOracle{steps: []string{"unused"}}, nil)
	ct, st := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Serve(ctx, ServeOptions{ExposeTools: true, Transport: st})
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "dispatch", Arguments: map[string]any{"request": "[echo] hi"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "add", Arguments: map[string]any{"a": 1, "b": 2}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"result":3`)

	require.NoError(t, session.Close())
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the client disconnected")
	}
}
