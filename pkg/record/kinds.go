package record

import "fmt"

type Kind string

const (
	KindPatient   Kind = "patient"
	KindTreatment Kind = "treatment"
)

// Canonical field names shared by every institution.
const (
	FieldID          = "id"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldMRN         = "mrn"
	FieldIsDeceased  = "is_deceased"
	FieldGender      = "gender"
	FieldSex         = "sex"
	FieldCity        = "city"
	FieldAddress     = "address"
	FieldState       = "state"
	FieldZip         = "zip"
	FieldPatientID   = "patient_id"
	FieldStartDate   = "start_date"
	FieldEndDate     = "end_date"
	FieldDisplayName = "display_name"
	FieldDiagnoses   = "diagnoses"
	FieldStatus      = "status"
)

func str(name string) FieldSpec { return FieldSpec{Name: name, Types: []string{TypeString}} }
func num(name string) FieldSpec { return FieldSpec{Name: name, Types: []string{TypeNumber}} }

var PatientSchema = &Schema{
	Kind: KindPatient,
	Fields: []FieldSpec{
		num(FieldID),
		str(FieldFirstName),
		str(FieldLastName),
		str(FieldMRN),
		{Name: FieldIsDeceased, Types: []string{TypeBoolean}},
		str(FieldGender),
		{Name: FieldSex, Enum: []any{"Female", "Male"}},
		{Name: FieldCity, Types: []string{TypeString, TypeNull}},
		str(FieldAddress),
		str(FieldState),
		str(FieldZip),
	},
	Required: []string{FieldID},
}

var TreatmentSchema = &Schema{
	Kind: KindTreatment,
	Fields: []FieldSpec{
		num(FieldID),
		num(FieldPatientID),
		str(FieldStartDate),
		str(FieldEndDate),
		str(FieldDisplayName),
		str(FieldDiagnoses),
		str(FieldStatus),
	},
	Required: []string{FieldID},
}

func SchemaFor(kind Kind) (*Schema, error) {
	switch kind {
	case KindPatient:
		return PatientSchema, nil
	case KindTreatment:
		return TreatmentSchema, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

func ParseKind(s string) (Kind, error) {
	kind := Kind(s)
	if _, err := SchemaFor(kind); err != nil {
		return "", err
	}
	return kind, nil
}
