package store

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

func TestKeyOf(t *testing.T) {
	tests := []struct {
		in   any
		want string
		err  bool
	}{
		{in: int64(7), want: "7"},
		{in: 7, want: "7"},
		{in: 7.0, want: "7"},
		{in: 7.5, want: "7.5"},
		{in: "P-7", want: "P-7"},
		{in: nil, err: true},
		{in: "", err: true},
		{in: record.Absent, err: true},
		{in: math.NaN(), err: true},
		{in: true, err: true},
	}
	for _, tt := range tests {
		got, err := KeyOf(tt.in)
		if tt.err {
			if !errors.Is(err, ErrMissingKey) {
				t.Errorf("KeyOf(%v): expected ErrMissingKey, got %q, %v", tt.in, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("KeyOf(%v) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestMemoryUpsertPatientIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection("hospital1")
	doc := record.Document{"id": int64(7), "first_name": "Ann", "mrn": "42"}

	if err := c.UpsertPatient(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := c.Get(ctx, int64(7))
	if err := c.UpsertPatient(ctx, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := c.Get(ctx, int64(7))

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical documents, got %v and %v", first, second)
	}
	if first["patient_id"] != int64(7) {
		t.Fatalf("expected patient_id key field, got %v", first["patient_id"])
	}
	if c.Len() != 1 {
		t.Fatalf("expected one document, got %d", c.Len())
	}
}

func TestMemoryUpsertPatientOverwritesScalars(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection("hospital1")
	_ = c.UpsertPatient(ctx, record.Document{"id": int64(7), "first_name": "Ann", "city": "Haifa"})
	_ = c.UpsertPatient(ctx, record.Document{"id": 7.0, "first_name": "Anna"})

	doc, err := c.Get(ctx, int64(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["first_name"] != "Anna" || doc["city"] != "Haifa" {
		t.Fatalf("expected merged document, got %v", doc)
	}
}

func TestMemoryAppendTreatmentCreatesStub(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection("hospital1")
	treatment := record.Document{"id": int64(1), "patient_id": int64(7)}

	created, err := c.AppendTreatment(ctx, int64(7), treatment)
	if err != nil || !created {
		t.Fatalf("expected stub creation, got created=%v err=%v", created, err)
	}
	doc, _ := c.Get(ctx, int64(7))
	if doc["patient_id"] != int64(7) {
		t.Fatalf("expected stub keyed by patient_id, got %v", doc)
	}
	if n := len(doc["treatments"].([]record.Document)); n != 1 {
		t.Fatalf("expected 1 treatment, got %d", n)
	}

	created, _ = c.AppendTreatment(ctx, int64(7), treatment)
	if created {
		t.Fatal("expected existing document to be reused")
	}
	doc, _ = c.Get(ctx, int64(7))
	if n := len(doc["treatments"].([]record.Document)); n != 2 {
		t.Fatalf("expected append to duplicate the treatment, got %d entries", n)
	}
}

func TestMemoryUpsertTreatmentReplacesByID(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection("hospital1")
	_, _ = c.UpsertTreatment(ctx, int64(7), record.Document{"id": int64(1), "status": "Active"})
	_, _ = c.UpsertTreatment(ctx, int64(7), record.Document{"id": 1.0, "status": "Completed"})
	_, _ = c.UpsertTreatment(ctx, int64(7), record.Document{"id": int64(2), "status": "Active"})

	doc, _ := c.Get(ctx, int64(7))
	treatments := doc["treatments"].([]record.Document)
	if len(treatments) != 2 {
		t.Fatalf("expected 2 treatments, got %v", treatments)
	}
	if treatments[0]["status"] != "Completed" {
		t.Fatalf("expected treatment 1 replaced, got %v", treatments[0])
	}
}

func TestMemoryErrors(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection("hospital1")
	if err := c.UpsertPatient(ctx, record.Document{"first_name": "Ann"}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if _, err := c.AppendTreatment(ctx, nil, record.Document{"id": int64(1)}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if _, err := c.Get(ctx, int64(99)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMaterialize(t *testing.T) {
	m := &PatientDocumentModel{
		Document:   map[string]interface{}{"patient_id": 7.0, "first_name": "Ann"},
		Treatments: []byte(`[{"id":1,"status":"Active"}]`),
	}
	doc, err := m.Materialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	treatments := doc["treatments"].([]record.Document)
	if len(treatments) != 1 || treatments[0]["status"] != "Active" {
		t.Fatalf("unexpected treatments: %v", treatments)
	}

	empty, err := (&PatientDocumentModel{Document: map[string]interface{}{}}).Materialize()
	if err != nil || len(empty["treatments"].([]record.Document)) != 0 {
		t.Fatalf("expected empty treatments array, got %v (%v)", empty, err)
	}
}
