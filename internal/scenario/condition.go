package scenario

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a parsed step condition: device.<attribute> <op> <literal>.
//
// The grammar is deliberately tiny and parsed by hand. Conditions come from
// config files; handing them to any general-purpose expression evaluator
// would turn a typo into arbitrary evaluation. The closed grammar makes
// that class of problem unrepresentable.
type Condition struct {
	Attribute string
	Negated   bool // true for !=

	kind literalKind
	str  string
	b    bool
	num  float64
}

type literalKind int

const (
	literalString literalKind = iota
	literalBool
	literalNumber
)

const conditionPrefix = "device."

// ParseCondition parses a condition string under the restricted grammar:
//
//	device.<attribute> (== | !=) <literal>
//
// where <literal> is a quoted string ('hdmi3' or "hdmi3"), a boolean
// (True/False, case-insensitive), or a numeric constant. Anything else is
// rejected with ErrInvalidCondition.
func ParseCondition(expr string) (*Condition, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidCondition)
	}

	if !strings.HasPrefix(s, conditionPrefix) {
		return nil, fmt.Errorf("%w: %q must start with %q", ErrInvalidCondition, expr, conditionPrefix)
	}
	s = s[len(conditionPrefix):]

	opIdx, opLen, negated, err := findOperator(s, expr)
	if err != nil {
		return nil, err
	}

	attr := strings.TrimSpace(s[:opIdx])
	if !validAttribute(attr) {
		return nil, fmt.Errorf("%w: %q: bad attribute %q", ErrInvalidCondition, expr, attr)
	}

	cond := &Condition{Attribute: attr, Negated: negated}
	if err := cond.parseLiteral(strings.TrimSpace(s[opIdx+opLen:]), expr); err != nil {
		return nil, err
	}
	return cond, nil
}

// findOperator locates == or != in the expression tail. Only the first
// occurrence binds; a later operator inside a quoted literal is part of
// the literal.
func findOperator(s, full string) (idx, length int, negated bool, err error) {
	eq := strings.Index(s, "==")
	ne := strings.Index(s, "!=")

	switch {
	case eq < 0 && ne < 0:
		return 0, 0, false, fmt.Errorf("%w: %q: expected == or !=", ErrInvalidCondition, full)
	case ne < 0 || (eq >= 0 && eq < ne):
		return eq, 2, false, nil
	default:
		return ne, 2, true, nil
	}
}

// validAttribute permits identifier-style attribute names only.
func validAttribute(attr string) bool {
	if attr == "" {
		return false
	}
	for _, r := range attr {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

func (c *Condition) parseLiteral(lit, full string) error {
	if lit == "" {
		return fmt.Errorf("%w: %q: missing literal", ErrInvalidCondition, full)
	}

	// Quoted string, single or double.
	if len(lit) >= 2 {
		first, last := lit[0], lit[len(lit)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			inner := lit[1 : len(lit)-1]
			if strings.ContainsRune(inner, rune(first)) {
				return fmt.Errorf("%w: %q: malformed string literal", ErrInvalidCondition, full)
			}
			c.kind = literalString
			c.str = inner
			return nil
		}
	}

	// Boolean, config files use Python-style True/False.
	switch strings.ToLower(lit) {
	case "true":
		c.kind = literalBool
		c.b = true
		return nil
	case "false":
		c.kind = literalBool
		c.b = false
		return nil
	}

	// Numeric constant.
	if n, err := strconv.ParseFloat(lit, 64); err == nil {
		c.kind = literalNumber
		c.num = n
		return nil
	}

	return fmt.Errorf("%w: %q: unrecognised literal %q", ErrInvalidCondition, full, lit)
}

// Evaluate applies the condition to a stored attribute value.
//
// present=false means the attribute (or the whole device) has never been
// seen; an absent value equals nothing, so == yields false and != yields
// true regardless of the literal.
//
// Equality is value-typed: a stored boolean only compares equal to a
// boolean literal, a stored string only to a string literal. There is no
// cross-type coercion — a device state of "on" does not equal True.
func (c *Condition) Evaluate(value any, present bool) bool {
	equal := present && c.equals(value)
	if c.Negated {
		return !equal
	}
	return equal
}

func (c *Condition) equals(value any) bool {
	switch c.kind {
	case literalString:
		s, ok := value.(string)
		return ok && s == c.str
	case literalBool:
		b, ok := value.(bool)
		return ok && b == c.b
	case literalNumber:
		n, ok := asNumber(value)
		return ok && n == c.num
	default:
		return false
	}
}

// asNumber normalises stored numeric representations for comparison.
// Booleans and numeric strings are NOT numbers here; only genuine numeric
// types participate in numeric equality.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
