package record

import (
	"errors"
	"fmt"
)

// ErrTranslationMissing means the institution has no source column for a canonical
// field. The normalizer treats it as an absent value.
var ErrTranslationMissing = errors.New("translation missing")

// Translations maps canonical field names to an institution's source column names.
type Translations map[string]string

func (t Translations) Column(field string) (string, error) {
	column, ok := t[field]
	if !ok {
		return "", fmt.Errorf("field %q: %w", field, ErrTranslationMissing)
	}
	return column, nil
}

func (t Translations) has(field string) bool {
	_, ok := t[field]
	return ok
}

// Clone returns an independent copy.
func (t Translations) Clone() Translations {
	out := make(Translations, len(t))
	for field, column := range t {
		out[field] = column
	}
	return out
}
