package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Float reads a numeric argument, accepting JSON numbers and numeric strings.
func Float(args map[string]any, name string) (float64, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return 0, fmt.Errorf("argument %q is required", name)
	}
	if f, ok := numeric(value); ok {
		return f, nil
	}
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q: %w", name, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("argument %q: expected number, got %T", name, value)
}

// Int reads an integral argument.
func Int(args map[string]any, name string) (int64, error) {
	f, err := Float(args, name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %q: %v is not an integer", name, f)
	}
	return int64(f), nil
}

// String reads a string argument, formatting scalars when needed.
func String(args map[string]any, name string) (string, error) {
	value, ok := args[name]
	if !ok || value == nil {
		return "", fmt.Errorf("argument %q is required", name)
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}
