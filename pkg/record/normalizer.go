package record

import (
	"errors"
	"fmt"
)

// Normalizer turns source rows of one record kind into canonical documents for one
// institution.
type Normalizer struct {
	Schema       *Schema
	Translations Translations
	Processors   ProcessorSet
}

// NewNormalizer builds a normalizer with a Lookup processor for every schema field,
// replaced by the given overrides. Translations and overrides must name schema fields.
func NewNormalizer(kind Kind, translations Translations, overrides map[string]Processor) (*Normalizer, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	processors := DefaultProcessors(schema)
	for _, spec := range schema.Fields {
		if p, ok := overrides[spec.Name]; ok {
			processors = processors.With(spec.Name, p)
		}
	}
	for field := range overrides {
		if _, ok := schema.Field(field); !ok {
			return nil, fmt.Errorf("%s processor for unknown field %q", kind, field)
		}
	}
	for field := range translations {
		if _, ok := schema.Field(field); !ok {
			return nil, fmt.Errorf("%s translation for unknown field %q", kind, field)
		}
	}
	return &Normalizer{Schema: schema, Translations: translations, Processors: processors}, nil
}

func (n *Normalizer) Kind() Kind {
	return n.Schema.Kind
}

// Normalize assembles and validates one document. Canonical fields are produced
// first and their translated columns claimed; every column left unclaimed is then
// copied under its source name.
func (n *Normalizer) Normalize(row Row) (Document, error) {
	working := row.normalized()
	src := NewSource(row.normalized(), n.Translations)
	doc := make(Document, len(row))

	for _, fp := range n.Processors {
		value, err := fp.Process(src, fp.Field)
		if err != nil {
			if !errors.Is(err, ErrTranslationMissing) {
				return nil, fmt.Errorf("%s field %q: %w", n.Kind(), fp.Field, err)
			}
			value = Absent
		}
		if column, ok := n.Translations[fp.Field]; ok {
			delete(working, column)
		}
		if !IsAbsent(value) {
			doc[fp.Field] = value
		}
	}

	for _, column := range working.sortedColumns() {
		if _, taken := doc[column]; taken {
			continue
		}
		value := working[column]
		if IsAbsent(value) {
			value = nil
		}
		doc[column] = value
	}

	if err := n.Schema.Check(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
