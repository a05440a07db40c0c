package importer

import (
	"errors"
	"fmt"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

var (
	ErrUnlinkedTreatment = errors.New("treatment has no patient_id")
	ErrLocked            = errors.New("import already running for institution")
	ErrPathNotAllowed    = errors.New("file is outside the import directory")
)

// RowError locates the row that aborted a file import.
type RowError struct {
	Kind record.Kind
	Path string
	Row  int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d of %s: %v", e.Kind, e.Row, e.Path, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Violations returns the schema violations behind err, if any.
func Violations(err error) []record.Violation {
	var sv *record.SchemaViolationError
	if errors.As(err, &sv) {
		return sv.Violations
	}
	return nil
}
