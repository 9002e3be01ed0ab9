package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Resolve validates and normalises a raw parameter map against a command's
// declared schema.
//
// For every declared parameter:
//   - present: type-check and, for numeric/range types, bounds-check
//   - absent and required: fail with MissingParameterError
//   - absent and optional: substitute the declared default, or the
//     type-appropriate zero value if no default is declared
//
// Coercion happens only within the same logical type family: a numeric
// string coerces to a number (MQTT payload ergonomics), an integer-valued
// float coerces to an integer. Cross-family coercion (bool to string,
// string "on" to bool) fails with TypeMismatchError.
//
// Unknown parameters not declared in the schema are ignored, keeping older
// callers forward-compatible with extended payloads.
//
// Resolve is a pure function: no side effects, deterministic for the same
// inputs.
func Resolve(def *Definition, provided map[string]any) (ResolvedParams, error) {
	resolved := make(ResolvedParams, len(def.Parameters))

	for _, p := range def.Parameters {
		raw, ok := provided[p.Name]
		if !ok {
			if p.Required {
				return nil, &MissingParameterError{Name: p.Name}
			}
			resolved[p.Name] = defaultValue(p)
			continue
		}

		value, err := coerce(p, raw)
		if err != nil {
			return nil, err
		}

		if err := checkBounds(p, value); err != nil {
			return nil, err
		}

		resolved[p.Name] = value
	}

	return resolved, nil
}

// defaultValue returns the declared default, normalised to the parameter's
// type, or the type-appropriate zero value.
//
// Declared defaults are validated at load time (ValidateDefinition), so a
// non-coercible default here falls back to the zero value rather than
// failing the resolve.
func defaultValue(p ParameterDefinition) any {
	if p.Default != nil {
		if v, err := coerce(p, p.Default); err == nil {
			return v
		}
	}

	switch p.Type {
	case TypeString:
		return ""
	case TypeInteger:
		return int64(0)
	case TypeFloat, TypeRange:
		return float64(0)
	case TypeBoolean:
		return false
	default:
		return nil
	}
}

// coerce converts a raw value to the parameter's canonical representation.
// Only same-family coercions are permitted.
func coerce(p ParameterDefinition, raw any) (any, error) {
	switch p.Type {
	case TypeString:
		return coerceString(p, raw)
	case TypeInteger:
		return coerceInteger(p, raw)
	case TypeFloat, TypeRange:
		return coerceFloat(p, raw)
	case TypeBoolean:
		return coerceBoolean(p, raw)
	default:
		return nil, &TypeMismatchError{Name: p.Name, Expected: p.Type, Actual: typeName(raw)}
	}
}

func coerceString(p ParameterDefinition, raw any) (any, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return nil, &TypeMismatchError{Name: p.Name, Expected: p.Type, Actual: typeName(raw)}
}

func coerceInteger(p ParameterDefinition, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		// JSON numbers arrive as float64; accept integer-valued floats.
		if v == math.Trunc(v) {
			return int64(v), nil
		}
	case string:
		// Numeric string to number is within the numeric family.
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, nil
		}
	}
	return nil, &TypeMismatchError{Name: p.Name, Expected: p.Type, Actual: typeName(raw)}
}

func coerceFloat(p ParameterDefinition, raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return n, nil
		}
	}
	return nil, &TypeMismatchError{Name: p.Name, Expected: p.Type, Actual: typeName(raw)}
}

func coerceBoolean(p ParameterDefinition, raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	return nil, &TypeMismatchError{Name: p.Name, Expected: p.Type, Actual: typeName(raw)}
}

// checkBounds enforces min/max on numeric and range values.
func checkBounds(p ParameterDefinition, value any) error {
	if p.Min == nil && p.Max == nil {
		return nil
	}

	var n float64
	switch v := value.(type) {
	case int64:
		n = float64(v)
	case float64:
		n = v
	default:
		// Bounds only apply to numeric values.
		return nil
	}

	if p.Min != nil && n < *p.Min {
		return &OutOfRangeError{Name: p.Name, Value: n, Min: p.Min, Max: p.Max}
	}
	if p.Max != nil && n > *p.Max {
		return &OutOfRangeError{Name: p.Name, Value: n, Min: p.Min, Max: p.Max}
	}
	return nil
}

// typeName describes a raw value's Go type for error messages.
func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
