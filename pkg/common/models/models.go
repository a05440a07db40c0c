package models

import (
	"time"
)

// Event is the envelope published on the import topics.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // import.completed, import.failed, import.rejected_row, import.requested
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventImportCompleted = "import.completed"
	EventImportFailed    = "import.failed"
	EventRejectedRow     = "import.rejected_row"
	EventImportRequested = "import.requested"
)

// ImportRequest asks for one institution's files to be imported.
type ImportRequest struct {
	Institution    string `json:"institution"`
	PatientsFile   string `json:"patients_file"`
	TreatmentsFile string `json:"treatments_file"`
}

type FileSummary struct {
	Kind          string        `json:"kind"`
	Path          string        `json:"path"`
	Batches       int           `json:"batches"`
	Rows          int           `json:"rows"`
	StubsCreated  int           `json:"stubs_created,omitempty"`
	Duration      time.Duration `json:"duration"`
	FailedAtRow   int           `json:"failed_at_row,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

type ImportSummary struct {
	RunID       string        `json:"run_id"`
	Institution string        `json:"institution"`
	Status      string        `json:"status"`
	Files       []FileSummary `json:"files"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Error       string        `json:"error,omitempty"`
}

const (
	ImportStatusCompleted = "completed"
	ImportStatusFailed    = "failed"
)

// RejectedRow is the dead-letter payload for a row that failed normalization.
type RejectedRow struct {
	RunID       string                 `json:"run_id"`
	Institution string                 `json:"institution"`
	Kind        string                 `json:"kind"`
	Path        string                 `json:"path"`
	Row         int                    `json:"row"`
	Data        map[string]interface{} `json:"data"`
	Violations  []string               `json:"violations,omitempty"`
	Error       string                 `json:"error"`
}
