package institution

import "github.com/synaptica-ai/hospital-import/pkg/record"

const hospitalOneActive = "Active"

var hospitalOnePatientTranslations = record.Translations{
	record.FieldID:         "PatientID",
	record.FieldFirstName:  "FirstName",
	record.FieldLastName:   "LastName",
	record.FieldMRN:        "MRN",
	record.FieldIsDeceased: "IsDeceased",
	record.FieldGender:     "Gender",
	record.FieldSex:        "Sex",
	record.FieldCity:       "City",
	record.FieldAddress:    "Address",
	record.FieldState:      "State",
	record.FieldZip:        "ZipCode",
}

var hospitalOneTreatmentTranslations = record.Translations{
	record.FieldID:          "TreatmentID",
	record.FieldPatientID:   "PatientID",
	record.FieldStartDate:   "StartDate",
	record.FieldEndDate:     "EndDate",
	record.FieldDisplayName: "DisplayName",
	record.FieldDiagnoses:   "Diagnoses",
	record.FieldStatus:      "Active",
}

// HospitalOne returns the adapter for the "hospital1" export layout. Its MRN and zip
// columns arrive numeric and are rendered as text; the IsDeceased column carries a
// status string where only "Active" counts as true.
func HospitalOne() Adapter {
	patient, err := record.NewNormalizer(record.KindPatient, hospitalOnePatientTranslations.Clone(), map[string]record.Processor{
		record.FieldMRN:        record.Text(record.Lookup),
		record.FieldZip:        record.Text(record.Lookup),
		record.FieldIsDeceased: record.Flag(hospitalOneActive),
	})
	if err != nil {
		panic(err)
	}
	treatment, err := record.NewNormalizer(record.KindTreatment, hospitalOneTreatmentTranslations.Clone(), nil)
	if err != nil {
		panic(err)
	}
	return NewLayout("hospital1", patient, treatment)
}
