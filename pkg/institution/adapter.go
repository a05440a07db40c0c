package institution

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

// Adapter specializes record normalization for one institution's file layout.
type Adapter interface {
	Name() string
	NormalizePatientRow(row record.Row) (record.Document, error)
	NormalizeTreatmentRow(row record.Row) (record.Document, error)
}

// Normalize dispatches a row to the adapter entry point for kind.
func Normalize(a Adapter, kind record.Kind, row record.Row) (record.Document, error) {
	switch kind {
	case record.KindPatient:
		return a.NormalizePatientRow(row)
	case record.KindTreatment:
		return a.NormalizeTreatmentRow(row)
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

// Layout is an Adapter assembled from one normalizer per record kind.
type Layout struct {
	name      string
	patient   *record.Normalizer
	treatment *record.Normalizer
}

func NewLayout(name string, patient, treatment *record.Normalizer) *Layout {
	return &Layout{name: name, patient: patient, treatment: treatment}
}

func (l *Layout) Name() string {
	return l.name
}

func (l *Layout) NormalizePatientRow(row record.Row) (record.Document, error) {
	return l.patient.Normalize(row)
}

func (l *Layout) NormalizeTreatmentRow(row record.Row) (record.Document, error) {
	return l.treatment.Normalize(row)
}

// Registry resolves adapters by institution name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// DefaultRegistry holds the built-in adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(HospitalOne())
	return r
}

func (r *Registry) Register(a Adapter) error {
	key := normalizeName(a.Name())
	if key == "" {
		return fmt.Errorf("adapter name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[key]; exists {
		return fmt.Errorf("adapter %q already registered", a.Name())
	}
	r.adapters[key] = a
	return nil
}

func (r *Registry) MustRegister(a Adapter) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("no adapter for institution %q", name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
