package command

import (
	"fmt"
)

// ValidateDefinition checks a command definition at load time.
//
// Rules:
//   - action must be non-empty
//   - variant must be one of the closed set (empty = standard)
//   - an ir variant must carry an IR code; a standard variant must not
//   - parameter names must be unique and types valid
//   - for range types, min <= max when both present
//   - optional parameters with a declared default must have a default
//     coercible to the parameter type
func ValidateDefinition(def *Definition) error {
	if def.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidDefinition)
	}

	switch def.Variant {
	case "", VariantStandard:
		if def.IRCode != "" {
			return fmt.Errorf("%w: %s: ir_code set on standard command", ErrInvalidDefinition, def.Action)
		}
	case VariantIR:
		if def.IRCode == "" {
			return fmt.Errorf("%w: %s: ir variant requires ir_code", ErrInvalidDefinition, def.Action)
		}
	default:
		return fmt.Errorf("%w: %s: unknown variant %q", ErrInvalidDefinition, def.Action, def.Variant)
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, p := range def.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: %s: parameter name is required", ErrInvalidDefinition, def.Action)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidDefinition, def.Action, p.Name)
		}
		seen[p.Name] = true

		if !validParamType(p.Type) {
			return fmt.Errorf("%w: %s: parameter %q has unknown type %q", ErrInvalidDefinition, def.Action, p.Name, p.Type)
		}

		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return fmt.Errorf("%w: %s: parameter %q: min %v > max %v", ErrInvalidDefinition, def.Action, p.Name, *p.Min, *p.Max)
		}

		if (p.Min != nil || p.Max != nil) && !numericType(p.Type) {
			return fmt.Errorf("%w: %s: parameter %q: bounds on non-numeric type %s", ErrInvalidDefinition, def.Action, p.Name, p.Type)
		}

		if !p.Required && p.Default != nil {
			if _, err := coerce(p, p.Default); err != nil {
				return fmt.Errorf("%w: %s: parameter %q: default not coercible to %s", ErrInvalidDefinition, def.Action, p.Name, p.Type)
			}
		}
	}

	return nil
}

func validParamType(t ParamType) bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeRange:
		return true
	default:
		return false
	}
}

func numericType(t ParamType) bool {
	switch t {
	case TypeInteger, TypeFloat, TypeRange:
		return true
	default:
		return false
	}
}
