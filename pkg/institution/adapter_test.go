package institution

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/synaptica-ai/hospital-import/pkg/record"
	"github.com/synaptica-ai/hospital-import/pkg/tabular"
)

func TestHospitalOnePatientExamples(t *testing.T) {
	a := HospitalOne()

	doc, err := a.NormalizePatientRow(record.Row{
		"PatientID":  int64(7),
		"FirstName":  "Ann",
		"MRN":        int64(42),
		"IsDeceased": "Active",
		"Sex":        "Female",
		"ZipCode":    int64(90210),
		"Notes":      "follow up",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["mrn"] != "42" {
		t.Errorf("expected mrn coerced to \"42\", got %#v", doc["mrn"])
	}
	if doc["zip"] != "90210" {
		t.Errorf("expected zip coerced to \"90210\", got %#v", doc["zip"])
	}
	if doc["is_deceased"] != true {
		t.Errorf("expected is_deceased true, got %v", doc["is_deceased"])
	}
	if doc["Notes"] != "follow up" {
		t.Errorf("expected Notes extension field, got %v", doc["Notes"])
	}

	doc, err = a.NormalizePatientRow(record.Row{"PatientID": int64(7), "IsDeceased": "Discharged"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["is_deceased"] != false {
		t.Errorf("expected is_deceased false, got %v", doc["is_deceased"])
	}
}

func TestHospitalOneTreatment(t *testing.T) {
	doc, err := Normalize(HospitalOne(), record.KindTreatment, record.Row{
		"TreatmentID": int64(3),
		"PatientID":   int64(7),
		"StartDate":   "2020-01-01",
		"Active":      "Active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["patient_id"] != int64(7) || doc["status"] != "Active" || doc["start_date"] != "2020-01-01" {
		t.Fatalf("unexpected document: %v", doc)
	}

	if _, err := Normalize(HospitalOne(), record.KindTreatment, record.Row{"PatientID": int64(7)}); !errors.Is(err, record.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for treatment without id, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.Lookup(" Hospital1 "); err != nil {
		t.Fatalf("expected hospital1 adapter: %v", err)
	}
	if _, err := r.Lookup("hospital9"); err == nil {
		t.Fatal("expected error for unknown institution")
	}
	if err := r.Register(HospitalOne()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

const definitionsYAML = `
institutions:
  - name: hospital2
    patient:
      translations:
        id: PID
        mrn: RecordNo
        is_deceased: Vital
        sex: Sex
      processors:
        mrn: text
        is_deceased: "flag:Deceased"
    treatment:
      translations:
        id: TxID
        patient_id: PID
        display_name: Regimen
`

func TestDefinitionsBuildAdapters(t *testing.T) {
	cfg, err := ParseDefinitions([]byte(definitionsYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := NewRegistry()
	if err := r.RegisterDefinitions(cfg); err != nil {
		t.Fatalf("failed to register definitions: %v", err)
	}
	a, err := r.Lookup("hospital2")
	if err != nil {
		t.Fatalf("expected hospital2 adapter: %v", err)
	}

	doc, err := a.NormalizePatientRow(record.Row{"PID": int64(5), "RecordNo": 77.0, "Vital": "Deceased", "Bed": "B2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["id"] != int64(5) || doc["mrn"] != "77" || doc["is_deceased"] != true || doc["Bed"] != "B2" {
		t.Fatalf("unexpected document: %v", doc)
	}

	tx, err := a.NormalizeTreatmentRow(record.Row{"TxID": int64(1), "PID": int64(5), "Regimen": "FOLFOX"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx["display_name"] != "FOLFOX" {
		t.Fatalf("unexpected treatment: %v", tx)
	}
}

func TestDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{name: "missing name", def: Definition{}},
		{name: "missing id", def: Definition{Name: "h", Patient: KindDefinition{Translations: map[string]string{"mrn": "MRN"}}}},
		{name: "unknown processor", def: Definition{Name: "h",
			Patient:   KindDefinition{Translations: map[string]string{"id": "ID"}, Processors: map[string]string{"mrn": "upper"}},
			Treatment: KindDefinition{Translations: map[string]string{"id": "ID"}}}},
		{name: "flag without value", def: Definition{Name: "h",
			Patient:   KindDefinition{Translations: map[string]string{"id": "ID"}, Processors: map[string]string{"is_deceased": "flag"}},
			Treatment: KindDefinition{Translations: map[string]string{"id": "ID"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.def.Build(); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := ParseDefinitions([]byte("institutions: []")); err == nil {
		t.Fatal("expected error for empty definitions")
	}
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "hospital1" {
		t.Fatalf("expected only built-in adapters, got %v", names)
	}

	path := filepath.Join(t.TempDir(), "institutions.yaml")
	if err := os.WriteFile(path, []byte(definitionsYAML), 0o644); err != nil {
		t.Fatalf("write definitions: %v", err)
	}
	r, err = LoadRegistry(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Lookup("hospital2"); err != nil {
		t.Fatalf("expected hospital2 from definitions: %v", err)
	}
	if _, err := r.Lookup("hospital1"); err != nil {
		t.Fatalf("expected built-in hospital1 to stay registered: %v", err)
	}

	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing definitions file")
	}
}

func TestHospitalOneEmptyStatusIsNotDeceased(t *testing.T) {
	doc, err := HospitalOne().NormalizePatientRow(record.Row{"PatientID": int64(7), "IsDeceased": tabular.ParseCell("")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := doc["is_deceased"]; !ok || v != false {
		t.Fatalf("expected is_deceased false, got %v (present=%v)", v, ok)
	}
}

const booleanFlagYAML = `
institutions:
  - name: hospital3
    patient:
      translations:
        id: PID
        is_deceased: Dead
      processors:
        is_deceased: "flag:True"
    treatment:
      translations:
        id: TxID
`

func TestDefinitionFlagOnBooleanCells(t *testing.T) {
	cfg, err := ParseDefinitions([]byte(booleanFlagYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := cfg.Institutions[0].Build()
	if err != nil {
		t.Fatalf("failed to build adapter: %v", err)
	}

	for cell, want := range map[string]bool{"True": true, "TRUE": true, "False": false, "": false} {
		doc, err := a.NormalizePatientRow(record.Row{"PID": int64(1), "Dead": tabular.ParseCell(cell)})
		if err != nil {
			t.Fatalf("cell %q: unexpected error: %v", cell, err)
		}
		if doc["is_deceased"] != want {
			t.Errorf("cell %q: expected is_deceased %v, got %v", cell, want, doc["is_deceased"])
		}
	}
}

func TestDefinitionRejectsUnknownTranslation(t *testing.T) {
	def := Definition{
		Name:      "h",
		Patient:   KindDefinition{Translations: map[string]string{"id": "ID", "blood_type": "Blood"}},
		Treatment: KindDefinition{Translations: map[string]string{"id": "ID"}},
	}
	if _, err := def.Build(); err == nil {
		t.Fatal("expected error for a translation of a field the patient schema does not have")
	}
}
