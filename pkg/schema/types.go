package schema

import (
	"fmt"
	"strings"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the human-readable name of the type, used both in error
	// messages and in the instructions rendered into the prompt.
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// StringType validates non-empty string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("expected non-empty string")
	}
	return nil
}

// IntType validates integer values.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return nil
	case float64:
		// JSON numbers arrive as float64; accept whole numbers.
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

// EnumType validates that a string value is one of a closed set, e.g. the
// living participants a vote may target.
type EnumType struct {
	values []string
}

func (t *EnumType) Name() string {
	return "one of [" + strings.Join(t.values, ", ") + "]"
}

func (t *EnumType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	for _, v := range t.values {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return nil
		}
	}
	return fmt.Errorf("%q is not %s", s, t.Name())
}

// Canonical returns the canonical casing for an accepted enum value.
func (t *EnumType) Canonical(value string) string {
	for _, v := range t.values {
		if strings.EqualFold(strings.TrimSpace(value), v) {
			return v
		}
	}
	return value
}

// String creates a string type validator.
func String() Type { return &StringType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Enum creates a closed-set string validator.
func Enum(values ...string) *EnumType { return &EnumType{values: values} }
