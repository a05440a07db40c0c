package store

import (
	"context"
	"sync"

	"github.com/synaptica-ai/hospital-import/pkg/record"
)

type memoryEntry struct {
	document   record.Document
	treatments []record.Document
}

// MemoryCollection keeps documents in process memory. It backs dry runs, the
// normalizer preview service and tests.
type MemoryCollection struct {
	mu        sync.RWMutex
	namespace string
	entries   map[string]*memoryEntry
}

func NewMemoryCollection(namespace string) *MemoryCollection {
	return &MemoryCollection{namespace: namespace, entries: make(map[string]*memoryEntry)}
}

func (m *MemoryCollection) Namespace() string {
	return m.namespace
}

func (m *MemoryCollection) UpsertPatient(ctx context.Context, doc record.Document) error {
	key, id, err := patientKey(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entry(key, id)
	for k, v := range doc {
		entry.document[k] = v
	}
	entry.document[FieldKey] = id
	return nil
}

func (m *MemoryCollection) AppendTreatment(ctx context.Context, patientID any, treatment record.Document) (bool, error) {
	return m.pushTreatment(patientID, treatment, false)
}

func (m *MemoryCollection) UpsertTreatment(ctx context.Context, patientID any, treatment record.Document) (bool, error) {
	return m.pushTreatment(patientID, treatment, true)
}

func (m *MemoryCollection) pushTreatment(patientID any, treatment record.Document, replace bool) (bool, error) {
	key, err := KeyOf(patientID)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.entries[key]
	entry := m.entry(key, patientID)
	if replace {
		entry.treatments = replaceOrAppend(entry.treatments, copyDocument(treatment))
	} else {
		entry.treatments = append(entry.treatments, copyDocument(treatment))
	}
	return !exists, nil
}

func (m *MemoryCollection) Get(ctx context.Context, patientID any) (record.Document, error) {
	key, err := KeyOf(patientID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	doc := copyDocument(entry.document)
	treatments := make([]record.Document, len(entry.treatments))
	for i, t := range entry.treatments {
		treatments[i] = copyDocument(t)
	}
	doc[FieldTreatments] = treatments
	return doc, nil
}

// Len returns the number of patient documents.
func (m *MemoryCollection) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCollection) entry(key string, id any) *memoryEntry {
	entry, ok := m.entries[key]
	if !ok {
		entry = &memoryEntry{document: record.Document{FieldKey: id}}
		m.entries[key] = entry
	}
	return entry
}
