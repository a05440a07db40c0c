package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/hospital-import/pkg/common/models"
	"github.com/synaptica-ai/hospital-import/pkg/institution"
	"github.com/synaptica-ai/hospital-import/pkg/store"
)

// CollectionFunc opens the document collection of one institution.
type CollectionFunc func(institution string) store.Collection

// Deps holds everything shared between import runs of a long-lived process.
type Deps struct {
	Registry    *institution.Registry
	Collections CollectionFunc
	Events      Publisher
	DLQ         Publisher
	Locker      Locker
	Options     Options
	// ImportDir confines requested files to one directory tree. Relative paths are
	// resolved against it.
	ImportDir string
}

// NewRunner returns a Runner that resolves the requested institution's adapter and
// collection and performs a full import.
func NewRunner(d Deps) Runner {
	return func(ctx context.Context, req models.ImportRequest) (*models.ImportSummary, error) {
		adapter, err := d.Registry.Lookup(req.Institution)
		if err != nil {
			return nil, err
		}
		patients, err := resolveImportPath(d.ImportDir, req.PatientsFile)
		if err != nil {
			return nil, err
		}
		treatments, err := resolveImportPath(d.ImportDir, req.TreatmentsFile)
		if err != nil {
			return nil, err
		}
		imp := NewImporter(adapter, d.Collections(adapter.Name()), d.Events, d.DLQ, d.Locker, d.Options)
		return imp.Run(ctx, Files{Patients: patients, Treatments: treatments})
	}
}

func resolveImportPath(dir, path string) (string, error) {
	if dir == "" {
		return path, nil
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathNotAllowed)
	}
	root := filepath.Clean(dir)
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathNotAllowed, path)
	}
	return full, nil
}
