package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tooldispatch/internal/domain"
)

func TestDecodeToolFile_Formats(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "tools.yaml",
			content: `
tools:
  - id: add
    name: Adder
    tags: [math, " arithmetic "]
    parameters:
      - name: a
        type: integer
      - name: b
        type: integer
        default: 0
`,
		},
		{
			name: "toml",
			file: "tools.toml",
			content: `
[[tools]]
id = "add"
name = "Adder"
tags = ["math", " arithmetic "]

[[tools.parameters]]
name = "a"
type = "integer"

[[tools.parameters]]
name = "b"
type = "integer"
default = 0
`,
		},
		{
			name:    "json",
			file:    "tools.json",
			content: `{"tools":[{"id":"add","name":"Adder","tags":["math"," arithmetic "],"parameters":[{"name":"a","type":"integer"},{"name":"b","type":"integer","default":0}]}]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, tc.file, tc.content)
			tools, missing, err := decodeToolFile(path)
			require.NoError(t, err)
			assert.Empty(t, missing)
			require.Len(t, tools, 1)

			tool := tools[0]
			assert.Equal(t, "add", tool.ID)
			assert.Equal(t, "Adder", tool.Name)
			assert.Equal(t, []string{"math", "arithmetic"}, tool.Tags)
			require.Len(t, tool.Parameters, 2)
			assert.Equal(t, domain.ParamInt, tool.Parameters[0].Type)
			assert.True(t, tool.Parameters[0].IsRequired())
			assert.False(t, tool.Parameters[1].IsRequired())
		})
	}
}

func TestDecodeToolFile_AgentsKey(t *testing.T) {
	path := writeTempFile(t, "agents.yaml", `
agents:
  - id: agent_a
    name: A Agent
    example_queries: ["what is a youtuber?"]
`)
	tools, _, err := decodeToolFile(path)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, []string{"what is a youtuber?"}, tools[0].ExampleQueries)
	assert.Empty(t, tools[0].Parameters)
}

func TestDecodeToolFile_EnvExpansion(t *testing.T) {
	t.Setenv("TD_TOOL_DESC", "from env")
	path := writeTempFile(t, "tools.toml", `
[[tools]]
id = "x"
description = "${TD_TOOL_DESC} ${TD_TOOL_MISSING}"
`)
	tools, missing, err := decodeToolFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"TD_TOOL_MISSING"}, missing)
	assert.Equal(t, "from env", tools[0].Description)
}

func TestDecodeToolFile_Errors(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{name: "extension", file: "tools.ini", content: "", want: "unsupported tool file extension"},
		{name: "missing id", file: "tools.yaml", content: "tools:\n  - name: x\n", want: "id is required"},
		{name: "bad pattern", file: "tools.yaml", content: "tools:\n  - id: x\n    parameters:\n      - name: p\n        pattern: \"[\"\n", want: "invalid pattern"},
		{name: "bad default", file: "tools.yaml", content: "tools:\n  - id: x\n    parameters:\n      - name: p\n        type: int\n        default: nope\n", want: "default nope"},
		{name: "bad json", file: "tools.json", content: "{", want: "decode tool file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, tc.file, tc.content)
			_, _, err := decodeToolFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
