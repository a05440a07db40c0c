package record

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Value types understood by FieldSpec.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// Violation rules.
const (
	RuleRequired = "required"
	RuleType     = "type"
	RuleEnum     = "enum"
)

var ErrSchemaViolation = errors.New("schema violation")

// FieldSpec describes one canonical field. Types lists the accepted value types;
// Enum, when set, restricts the field to the listed values.
type FieldSpec struct {
	Name  string
	Types []string
	Enum  []any
}

type Schema struct {
	Kind     Kind
	Fields   []FieldSpec
	Required []string
}

func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, spec := range s.Fields {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// SchemaViolationError carries every violation found in one document.
type SchemaViolationError struct {
	Kind       Kind
	Violations []Violation
}

func (e *SchemaViolationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, ErrSchemaViolation, strings.Join(parts, "; "))
}

func (e *SchemaViolationError) Unwrap() error {
	return ErrSchemaViolation
}

// Validate checks doc against the schema and returns all violations, required fields
// first, then fields in schema order. Fields not described by the schema are
// extension fields and are not checked.
func (s *Schema) Validate(doc Document) []Violation {
	var violations []Violation
	for _, name := range s.Required {
		value, ok := doc[name]
		if !ok || IsAbsent(value) {
			violations = append(violations, Violation{
				Field:   name,
				Rule:    RuleRequired,
				Message: "required field missing",
			})
		}
	}

	for _, spec := range s.Fields {
		value, ok := doc[spec.Name]
		if !ok {
			continue
		}
		if IsAbsent(value) {
			violations = append(violations, Violation{
				Field:   spec.Name,
				Rule:    RuleType,
				Message: "absent value stored",
			})
			continue
		}
		if len(spec.Types) > 0 && !matchesAnyType(value, spec.Types) {
			violations = append(violations, Violation{
				Field:   spec.Name,
				Rule:    RuleType,
				Message: fmt.Sprintf("%v (%T) is not of type %s", value, value, strings.Join(spec.Types, "|")),
			})
			continue
		}
		if len(spec.Enum) > 0 && !inEnum(value, spec.Enum) {
			violations = append(violations, Violation{
				Field:   spec.Name,
				Rule:    RuleEnum,
				Message: fmt.Sprintf("%v is not one of %v", value, spec.Enum),
			})
		}
	}
	return violations
}

// Check validates doc and returns a *SchemaViolationError when it fails.
func (s *Schema) Check(doc Document) error {
	violations := s.Validate(doc)
	if len(violations) == 0 {
		return nil
	}
	return &SchemaViolationError{Kind: s.Kind, Violations: violations}
}

func matchesAnyType(v any, types []string) bool {
	for _, t := range types {
		if matchesType(v, t) {
			return true
		}
	}
	return false
}

func matchesType(v any, t string) bool {
	switch t {
	case TypeNull:
		return v == nil
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		f := float64(n)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	default:
		return 0, false
	}
}

func inEnum(v any, enum []any) bool {
	if v != nil && !reflect.TypeOf(v).Comparable() {
		return false
	}
	for _, allowed := range enum {
		if v == allowed {
			return true
		}
	}
	return false
}
