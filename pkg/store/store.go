// Package store persists canonical patient documents, one namespace per
// institution. Treatments live inside their patient's "treatments" array.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

const (
	FieldKey        = "patient_id"
	FieldTreatments = "treatments"
)

var (
	ErrPersistence = errors.New("persistence failure")
	ErrMissingKey  = errors.New("document key missing")
	ErrNotFound    = errors.New("patient document not found")
)

// Collection is a document store handle bound to one institution.
type Collection interface {
	Namespace() string
	// UpsertPatient merges doc into the patient document keyed by doc["id"],
	// overwriting scalar fields and creating the document when absent.
	UpsertPatient(ctx context.Context, doc record.Document) error
	// AppendTreatment pushes treatment onto the treatments array of the patient keyed
	// by patientID, creating a stub document when absent. It reports whether a stub
	// was created. Repeated calls append repeatedly.
	AppendTreatment(ctx context.Context, patientID any, treatment record.Document) (bool, error)
	// UpsertTreatment behaves like AppendTreatment but replaces an existing array
	// element with the same treatment id.
	UpsertTreatment(ctx context.Context, patientID any, treatment record.Document) (bool, error)
	Get(ctx context.Context, patientID any) (record.Document, error)
}

// KeyOf renders a natural key as the string used to address a document. Numbers
// that differ only in representation (7, 7.0) address the same document.
func KeyOf(v any) (string, error) {
	switch k := v.(type) {
	case nil:
		return "", ErrMissingKey
	case string:
		if k == "" {
			return "", ErrMissingKey
		}
		return k, nil
	case int:
		return strconv.Itoa(k), nil
	case int32:
		return strconv.FormatInt(int64(k), 10), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case uint64:
		return strconv.FormatUint(k, 10), nil
	case float32:
		return KeyOf(float64(k))
	case float64:
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return "", ErrMissingKey
		}
		if k == math.Trunc(k) && math.Abs(k) < 1<<53 {
			return strconv.FormatInt(int64(k), 10), nil
		}
		return strconv.FormatFloat(k, 'g', -1, 64), nil
	default:
		if record.IsAbsent(v) {
			return "", ErrMissingKey
		}
		return "", fmt.Errorf("%w: unsupported key type %T", ErrMissingKey, v)
	}
}

func patientKey(doc record.Document) (string, any, error) {
	id := doc[record.FieldID]
	key, err := KeyOf(id)
	if err != nil {
		return "", nil, fmt.Errorf("patient %s: %w", record.FieldID, err)
	}
	return key, id, nil
}

// replaceOrAppend replaces the element of treatments whose id matches treatment's
// id, or appends treatment when none does.
func replaceOrAppend(treatments []record.Document, treatment record.Document) []record.Document {
	want, err := KeyOf(treatment[record.FieldID])
	if err == nil {
		for i, existing := range treatments {
			if got, err := KeyOf(existing[record.FieldID]); err == nil && got == want {
				treatments[i] = treatment
				return treatments
			}
		}
	}
	return append(treatments, treatment)
}

func copyDocument(doc record.Document) record.Document {
	out := make(record.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func persistenceError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, key, err)
}
