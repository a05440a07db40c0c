package record

import (
	"math"
	"sort"
)

type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent marks a field with no data. Missing columns, empty strings, nil and NaN all
// collapse to it before processing, so "not reported" and "explicitly empty" cannot
// be told apart downstream.
var Absent any = absent{}

// IsAbsent reports whether v is the absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Row is one source record keyed by source column name.
type Row map[string]any

// Document is a canonical record: canonical fields plus extension fields.
type Document map[string]any

// normalized returns a working copy of the row with every missing-value
// representation replaced by Absent.
func (r Row) normalized() Row {
	out := make(Row, len(r))
	for column, value := range r {
		out[column] = normalizeMissing(value)
	}
	return out
}

func (r Row) sortedColumns() []string {
	columns := make([]string, 0, len(r))
	for column := range r {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func normalizeMissing(v any) any {
	switch val := v.(type) {
	case nil:
		return Absent
	case string:
		if val == "" {
			return Absent
		}
	case float64:
		if math.IsNaN(val) {
			return Absent
		}
	case float32:
		if math.IsNaN(float64(val)) {
			return Absent
		}
	}
	return v
}
