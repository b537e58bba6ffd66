package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tooldispatch/internal/domain"
)

func TestRequiredNames(t *testing.T) {
	specs := []domain.ParameterSpec{
		{Name: "a", Type: domain.ParamInt},
		{Name: "b", Type: domain.ParamInt, Default: 1},
		{Name: "c", Type: domain.ParamString, Required: domain.BoolPtr(false)},
		{Name: "d", Type: domain.ParamString, Required: domain.BoolPtr(true), Default: "x"},
	}
	assert.Equal(t, []string{"a", "d"}, RequiredNames(specs))
	assert.Len(t, Required(specs), 2)
}

func TestIsPresent(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "nil", value: nil, want: false},
		{name: "empty string", value: "", want: false},
		{name: "blank string", value: "   ", want: false},
		{name: "empty list", value: []any{}, want: false},
		{name: "empty map", value: map[string]any{}, want: false},
		{name: "zero number", value: float64(0), want: true},
		{name: "false", value: false, want: true},
		{name: "text", value: "math", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPresent(tt.value))
		})
	}
}

func TestMissingRequired(t *testing.T) {
	specs := []domain.ParameterSpec{
		{Name: "a", Type: domain.ParamInt},
		{Name: "b", Type: domain.ParamInt},
		{Name: "opt", Type: domain.ParamString, Default: "x"},
	}
	assert.Equal(t, []string{"b"}, MissingRequired(specs, map[string]any{"a": 5}))
	assert.Empty(t, MissingRequired(specs, map[string]any{"a": 5, "b": 0}))
}

func TestApplyDefaults(t *testing.T) {
	specs := []domain.ParameterSpec{
		{Name: "a", Type: domain.ParamInt},
		{Name: "unit", Type: domain.ParamString, Default: "cm"},
	}
	args := map[string]any{"a": 1}
	out := ApplyDefaults(specs, args)
	assert.Equal(t, map[string]any{"a": 1, "unit": "cm"}, out)
	assert.NotContains(t, args, "unit")

	out = ApplyDefaults(specs, map[string]any{"a": 1, "unit": "mm"})
	assert.Equal(t, "mm", out["unit"])
}

func TestValidate(t *testing.T) {
	specs := []domain.ParameterSpec{
		{Name: "a", Type: domain.ParamInt},
		{Name: "mode", Type: domain.ParamString, Enum: []any{"fast", "slow"}, Default: "fast"},
		{Name: "code", Type: domain.ParamString, Pattern: "^[a-z]+$", Required: domain.BoolPtr(false)},
		{Name: "ratio", Type: domain.ParamFloat, Required: domain.BoolPtr(false)},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{name: "valid minimal", args: map[string]any{"a": 3}},
		{name: "valid json number", args: map[string]any{"a": float64(3), "ratio": 0.5}},
		{name: "missing required", args: map[string]any{"mode": "fast"}, wantErr: true},
		{name: "wrong type", args: map[string]any{"a": "three"}, wantErr: true},
		{name: "fractional int", args: map[string]any{"a": 2.5}, wantErr: true},
		{name: "enum violation", args: map[string]any{"a": 1, "mode": "medium"}, wantErr: true},
		{name: "pattern violation", args: map[string]any{"a": 1, "code": "ABC"}, wantErr: true},
		{name: "optional null", args: map[string]any{"a": 1, "code": nil, "ratio": nil}},
		{name: "required null", args: map[string]any{"a": nil}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(specs, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidArguments))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidate_KeepsCallerArgs(t *testing.T) {
	specs := []domain.ParameterSpec{{Name: "lang", Type: domain.ParamString, Required: domain.BoolPtr(false)}}
	args := map[string]any{"lang": nil}
	require.NoError(t, Validate(specs, args))
	assert.Contains(t, args, "lang")
}

func TestValidate_NoParameters(t *testing.T) {
	require.NoError(t, Validate(nil, nil))
	require.NoError(t, Validate(nil, map[string]any{}))
}

func TestCheckSpecs(t *testing.T) {
	specs := []domain.ParameterSpec{
		{Name: "a", Type: domain.ParamInt, Default: 1.5},
		{Name: "a", Type: domain.ParamString},
		{Name: "", Type: domain.ParamString},
		{Name: "p", Type: domain.ParamString, Pattern: "("},
		{Name: "q", Type: domain.ParamInt, Pattern: "^1$"},
		{Name: "e", Type: domain.ParamBool, Enum: []any{"yes"}},
		{Name: "x", Type: domain.ParamType("list")},
	}
	errs := CheckSpecs("tools[0]", specs)
	require.Len(t, errs, 7)
	assert.Contains(t, errs[0], "default 1.5 is not of type int")
	assert.Contains(t, errs[1], `duplicate parameter "a"`)
	assert.Contains(t, errs[2], "name is required")
	assert.Contains(t, errs[3], "invalid pattern")
	assert.Contains(t, errs[4], "pattern only applies to string")
	assert.Contains(t, errs[5], "enum value yes")
	assert.Contains(t, errs[6], `unsupported type "list"`)
}

func TestCoerce(t *testing.T) {
	args := map[string]any{"i": float64(4), "f": "2.5", "s": 7, "bad": 1.5}

	i, err := Int(args, "i")
	require.NoError(t, err)
	assert.Equal(t, int64(4), i)

	f, err := Float(args, "f")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 1e-9)

	s, err := String(args, "s")
	require.NoError(t, err)
	assert.Equal(t, "7", s)

	_, err = Int(args, "bad")
	assert.Error(t, err)
	_, err = Float(args, "missing")
	assert.Error(t, err)
}
