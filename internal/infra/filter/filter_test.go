package filter

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tooldispatch/internal/domain"
)

type extractionReply struct {
	text  string
	err   error
	panic bool
	delay time.Duration
}

// fakeOracle answers extraction prompts per tool id.
type fakeOracle struct {
	replies  map[string]extractionReply
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	purposes sync.Map
}

func (f *fakeOracle) Complete(ctx context.Context, messages []domain.Message, _ float64) (string, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	id := toolIDFromPrompt(messages[0].Content)
	f.purposes.Store(id, domain.OraclePurposeFrom(ctx))
	reply := f.replies[id]
	if reply.delay > 0 {
		time.Sleep(reply.delay)
	}
	if reply.panic {
		panic("oracle exploded")
	}
	return reply.text, reply.err
}

func toolIDFromPrompt(system string) string {
	_, rest, ok := strings.Cut(system, "Tool: ")
	if !ok {
		return ""
	}
	end := strings.IndexAny(rest, " \n")
	if end < 0 {
		return rest
	}
	return rest[:end]
}

type mockMetrics struct {
	domain.NoopMetrics
	total     int
	available int
}

func (m *mockMetrics) ObserveFilter(total int, available int) {
	m.total = total
	m.available = available
}

func tool(id string, params ...domain.ParameterSpec) domain.ToolDescriptor {
	return domain.ToolDescriptor{ID: id, Name: id, Parameters: params}
}

func TestFilter_ZeroParamToolsAlwaysAvailable(t *testing.T) {
	oracle := &fakeOracle{}
	f := New(oracle, nil, zap.NewNop(), Options{})

	for _, request := range []string{"", "anything at all", "[pin] weird"} {
		entries := f.Run(context.Background(), request, []domain.ToolDescriptor{tool("now")})
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Available)
		assert.Equal(t, map[string]any{}, entries[0].ExtractedParams)
	}
	assert.Zero(t, oracle.calls.Load(), "zero-param tools never consult the oracle")
}

func TestFilter_RequiredParameterGate(t *testing.T) {
	required := domain.ParameterSpec{Name: "a", Type: domain.ParamInt, Required: domain.BoolPtr(true)}

	cases := []struct {
		name      string
		reply     string
		available bool
		extracted map[string]any
	}{
		{name: "empty object", reply: `{}`, available: false, extracted: map[string]any{}},
		{name: "null", reply: `null`, available: false, extracted: map[string]any{}},
		{name: "present", reply: `{"a": 5}`, available: true, extracted: map[string]any{"a": float64(5)}},
		{name: "null value", reply: `{"a": null}`, available: false, extracted: map[string]any{"a": nil}},
		{name: "empty string", reply: `{"a": ""}`, available: false, extracted: map[string]any{"a": ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oracle := &fakeOracle{replies: map[string]extractionReply{"calc": {text: tc.reply}}}
			entries := New(oracle, nil, nil, Options{}).Run(context.Background(), "add 5", []domain.ToolDescriptor{tool("calc", required)})
			require.Len(t, entries, 1)
			assert.Equal(t, tc.available, entries[0].Available)
			assert.Equal(t, tc.extracted, entries[0].ExtractedParams)
			assert.Empty(t, entries[0].Error)
		})
	}
}

func TestFilter_OptionalParametersMayBeMissing(t *testing.T) {
	params := []domain.ParameterSpec{
		{Name: "city", Type: domain.ParamString},
		{Name: "units", Type: domain.ParamString, Default: "metric"},
	}
	oracle := &fakeOracle{replies: map[string]extractionReply{"weather": {text: `{"city":"Taipei"}`}}}

	entries := New(oracle, nil, nil, Options{}).Run(context.Background(), "weather in Taipei", []domain.ToolDescriptor{tool("weather", params...)})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Available)
}

func TestFilter_FailuresAreIsolated(t *testing.T) {
	p := domain.ParameterSpec{Name: "q", Type: domain.ParamString}
	oracle := &fakeOracle{replies: map[string]extractionReply{
		"down":     {err: domain.E(domain.CodeOracleError, "test", "connection refused", domain.ErrOracleUnavailable)},
		"garbled":  {text: "I think the answer is 42"},
		"panicky":  {panic: true},
		"healthy":  {text: `{"q":"hello"}`},
		"scalar":   {text: `"hello"`},
		"trailing": {text: `{"q":"x"} extra`},
	}}
	tools := []domain.ToolDescriptor{
		tool("down", p), tool("garbled", p), tool("healthy", p), tool("panicky", p), tool("scalar", p), tool("trailing", p), tool("free"),
	}
	metrics := &mockMetrics{}

	entries := New(oracle, metrics, zap.NewNop(), Options{Concurrency: 3}).Run(context.Background(), "hello", tools)
	require.Len(t, entries, len(tools))

	byID := make(map[string]domain.FilterEntry, len(entries))
	for i, entry := range entries {
		assert.Equal(t, tools[i].ID, entry.ToolID, "entries keep catalogue order")
		byID[entry.ToolID] = entry
	}

	assert.True(t, byID["healthy"].Available)
	assert.Equal(t, map[string]any{"q": "hello"}, byID["healthy"].ExtractedParams)
	assert.True(t, byID["free"].Available)
	for _, id := range []string{"down", "garbled", "panicky", "scalar", "trailing"} {
		assert.False(t, byID[id].Available, id)
		assert.NotEmpty(t, byID[id].Error, id)
		assert.NotNil(t, byID[id].ExtractedParams, id)
	}
	assert.Contains(t, byID["down"].Error, "connection refused")

	assert.Equal(t, 7, metrics.total)
	assert.Equal(t, 2, metrics.available)
}

func TestFilter_BoundedConcurrency(t *testing.T) {
	p := domain.ParameterSpec{Name: "q", Type: domain.ParamString}
	replies := make(map[string]extractionReply)
	var tools []domain.ToolDescriptor
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		replies[id] = extractionReply{text: `{"q":"x"}`, delay: 20 * time.Millisecond}
		tools = append(tools, tool(id, p))
	}
	oracle := &fakeOracle{replies: replies}

	entries := New(oracle, nil, nil, Options{Concurrency: 2}).Run(context.Background(), "x", tools)
	require.Len(t, entries, 6)
	assert.EqualValues(t, 6, oracle.calls.Load())
	assert.LessOrEqual(t, oracle.peak.Load(), int32(2))
}

func TestFilter_TagsExtractPurpose(t *testing.T) {
	oracle := &fakeOracle{replies: map[string]extractionReply{"t": {text: `{"q":"x"}`}}}
	New(oracle, nil, nil, Options{}).Run(context.Background(), "x", []domain.ToolDescriptor{tool("t", domain.ParameterSpec{Name: "q", Type: domain.ParamString})})

	purpose, ok := oracle.purposes.Load("t")
	require.True(t, ok)
	assert.Equal(t, domain.PurposeExtract, purpose)
}

func TestFilter_NilOracle(t *testing.T) {
	entries := New(nil, nil, nil, Options{}).Run(context.Background(), "x", []domain.ToolDescriptor{
		tool("t", domain.ParameterSpec{Name: "q", Type: domain.ParamString}),
	})
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Available)
	assert.Contains(t, entries[0].Error, "oracle not configured")
}
