package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Source gives a processor read access to one row through an institution's
// translations.
type Source struct {
	row          Row
	translations Translations
}

func NewSource(row Row, translations Translations) Source {
	return Source{row: row, translations: translations}
}

// Column resolves a canonical field to its source column.
func (s Source) Column(field string) (string, error) {
	return s.translations.Column(field)
}

// Raw returns the value held by a source column, or Absent when the row does not
// carry the column.
func (s Source) Raw(column string) any {
	value, ok := s.row[column]
	if !ok {
		return Absent
	}
	return normalizeMissing(value)
}

// Has reports whether the row carries column at all, empty or not.
func (s Source) Has(column string) bool {
	_, ok := s.row[column]
	return ok
}

// Value resolves field through the translations and returns the row's value.
func (s Source) Value(field string) (any, error) {
	column, err := s.Column(field)
	if err != nil {
		return Absent, err
	}
	return s.Raw(column), nil
}

// Processor produces the value of one canonical field from a source row. It returns
// Absent when there is nothing to record.
type Processor func(src Source, field string) (any, error)

// Lookup is the default processor: straight pass-through of the translated column.
func Lookup(src Source, field string) (any, error) {
	return src.Value(field)
}

// Text renders the value produced by inner as a string, so that a column typed
// numerically by the source still satisfies a string field.
func Text(inner Processor) Processor {
	return func(src Source, field string) (any, error) {
		value, err := inner(src, field)
		if err != nil || IsAbsent(value) || value == nil {
			return value, err
		}
		return formatText(value), nil
	}
}

// Flag derives a boolean from a categorical status: true only when the value equals
// active. A status column that is present but empty reads as false; a row without
// the column leaves the field absent. Typed cells compare by their text, booleans
// case-insensitively, so "flag:True" matches a cell read as true.
func Flag(active string) Processor {
	return func(src Source, field string) (any, error) {
		column, err := src.Column(field)
		if err != nil {
			return Absent, err
		}
		if !src.Has(column) {
			return Absent, nil
		}
		value := src.Raw(column)
		switch v := value.(type) {
		case string:
			return v == active, nil
		case bool:
			return strings.EqualFold(formatText(v), active), nil
		}
		if IsAbsent(value) {
			return false, nil
		}
		return formatText(value) == active, nil
	}
}

func formatText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// FieldProcessor binds a processor to the canonical field it produces.
type FieldProcessor struct {
	Field   string
	Process Processor
}

// ProcessorSet is an ordered list of field processors.
type ProcessorSet []FieldProcessor

// DefaultProcessors returns a Lookup processor for every field of schema, in schema
// order.
func DefaultProcessors(schema *Schema) ProcessorSet {
	set := make(ProcessorSet, 0, len(schema.Fields))
	for _, spec := range schema.Fields {
		set = append(set, FieldProcessor{Field: spec.Name, Process: Lookup})
	}
	return set
}

// With returns a copy of the set where field is handled by p. Unknown fields are
// appended at the end.
func (s ProcessorSet) With(field string, p Processor) ProcessorSet {
	out := make(ProcessorSet, len(s), len(s)+1)
	copy(out, s)
	for i := range out {
		if out[i].Field == field {
			out[i].Process = p
			return out
		}
	}
	return append(out, FieldProcessor{Field: field, Process: p})
}

func (s ProcessorSet) Fields() []string {
	fields := make([]string, len(s))
	for i, fp := range s {
		fields[i] = fp.Field
	}
	return fields
}
