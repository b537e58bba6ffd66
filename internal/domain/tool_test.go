package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeParamType(t *testing.T) {
	cases := map[string]ParamType{
		"integer": ParamInt,
		" Number": ParamFloat,
		"boolean": ParamBool,
		"":        ParamString,
		"Object":  ParamType("object"),
	}
	for raw, want := range cases {
		got := NormalizeParamType(raw)
		assert.Equal(t, want, got, raw)
	}
	assert.False(t, NormalizeParamType("object").Valid())
}

func TestParameterSpec_IsRequired(t *testing.T) {
	assert.True(t, ParameterSpec{Name: "city"}.IsRequired())
	assert.False(t, ParameterSpec{Name: "units", Default: "metric"}.IsRequired())
	assert.True(t, ParameterSpec{Name: "units", Default: "metric", Required: BoolPtr(true)}.IsRequired())
	assert.False(t, ParameterSpec{Name: "city", Required: BoolPtr(false)}.IsRequired())
}

func TestToolDescriptor_CloneIsDeep(t *testing.T) {
	orig := ToolDescriptor{
		ID:         "weather",
		Tags:       []string{"forecast"},
		Parameters: []ParameterSpec{{Name: "city", Required: BoolPtr(true), Enum: []any{"Oslo"}}},
	}
	clone := orig.Clone()
	clone.Tags[0] = "changed"
	*clone.Parameters[0].Required = false
	clone.Parameters[0].Enum[0] = "Bergen"

	assert.Equal(t, "forecast", orig.Tags[0])
	assert.True(t, *orig.Parameters[0].Required)
	assert.Equal(t, "Oslo", orig.Parameters[0].Enum[0])
}
