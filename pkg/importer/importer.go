package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
	"github.com/synaptica-ai/hospital-import/pkg/common/models"
	"github.com/synaptica-ai/hospital-import/pkg/institution"
	"github.com/synaptica-ai/hospital-import/pkg/observability/metrics"
	"github.com/synaptica-ai/hospital-import/pkg/record"
	"github.com/synaptica-ai/hospital-import/pkg/store"
	"github.com/synaptica-ai/hospital-import/pkg/tabular"
)

const eventSource = "hospital-import"

type TreatmentMode string

const (
	// ModeAppend pushes every treatment row, so re-importing a file duplicates entries.
	ModeAppend TreatmentMode = "append"
	// ModeUpsert replaces an existing treatment with the same id.
	ModeUpsert TreatmentMode = "upsert"
)

func ParseTreatmentMode(s string) (TreatmentMode, error) {
	switch mode := TreatmentMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ModeAppend, nil
	case ModeAppend, ModeUpsert:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown treatment mode %q", s)
	}
}

type Options struct {
	BatchSize     int
	TreatmentMode TreatmentMode
	Encoding      string
}

// Files names the two source files of one run.
type Files struct {
	Patients   string
	Treatments string
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Importer loads one institution's patients file, then its treatments file, into
// that institution's collection. Rows are processed strictly in order; the first
// failing row aborts the run and rows already written stay written.
type Importer struct {
	adapter    institution.Adapter
	collection store.Collection
	events     Publisher
	dlq        Publisher
	locker     Locker
	opts       Options
}

// NewImporter wires an importer. events, dlq and locker are optional.
func NewImporter(adapter institution.Adapter, collection store.Collection, events, dlq Publisher, locker Locker, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = tabular.DefaultBatchSize
	}
	if opts.TreatmentMode == "" {
		opts.TreatmentMode = ModeAppend
	}
	return &Importer{
		adapter:    adapter,
		collection: collection,
		events:     events,
		dlq:        dlq,
		locker:     locker,
		opts:       opts,
	}
}

func (i *Importer) Run(ctx context.Context, files Files) (*models.ImportSummary, error) {
	summary := &models.ImportSummary{
		RunID:       uuid.New().String(),
		Institution: i.collection.Namespace(),
		StartedAt:   time.Now().UTC(),
	}
	log := logger.WithFields(logrus.Fields{
		"run_id":      summary.RunID,
		"institution": summary.Institution,
		"adapter":     i.adapter.Name(),
	})

	err := i.run(ctx, files, summary, log)

	summary.CompletedAt = time.Now().UTC()
	summary.Status = models.ImportStatusCompleted
	eventType := models.EventImportCompleted
	if err != nil {
		summary.Status = models.ImportStatusFailed
		summary.Error = err.Error()
		eventType = models.EventImportFailed
		log.WithError(err).Error("import failed")
	} else {
		log.WithField("duration", summary.CompletedAt.Sub(summary.StartedAt).String()).Info("import completed")
	}
	metrics.ObserveRun(summary.Institution, summary.Status)
	i.publish(ctx, i.events, eventType, summary)

	return summary, err
}

func (i *Importer) run(ctx context.Context, files Files, summary *models.ImportSummary, log *logrus.Entry) error {
	if i.locker != nil {
		release, err := i.locker.Acquire(ctx, summary.Institution)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				log.WithError(err).Warn("failed to release import lock")
			}
		}()
	}

	if err := i.importFile(ctx, record.KindPatient, files.Patients, summary, log); err != nil {
		return err
	}
	return i.importFile(ctx, record.KindTreatment, files.Treatments, summary, log)
}

func (i *Importer) importFile(ctx context.Context, kind record.Kind, path string, summary *models.ImportSummary, log *logrus.Entry) error {
	started := time.Now()
	fs := models.FileSummary{Kind: string(kind), Path: path}
	defer func() {
		fs.Duration = time.Since(started)
		summary.Files = append(summary.Files, fs)
	}()

	log = log.WithFields(logrus.Fields{"kind": kind, "file": path})
	log.Info("importing file")

	reader, err := tabular.Open(path, tabular.Options{BatchSize: i.opts.BatchSize, Encoding: i.opts.Encoding})
	if err != nil {
		fs.FailureReason = err.Error()
		return fmt.Errorf("open %s file: %w", kind, err)
	}
	defer reader.Close()

	for {
		batch, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fs.FailureReason = err.Error()
			return fmt.Errorf("read %s: %w", path, err)
		}
		fs.Batches++

		for n, row := range batch.Rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			rowNum := batch.Start + n
			stub, err := i.importRow(ctx, kind, row)
			if err != nil {
				rowErr := &RowError{Kind: kind, Path: path, Row: rowNum, Err: err}
				fs.FailedAtRow = rowNum
				fs.FailureReason = err.Error()
				i.deadLetter(ctx, summary.RunID, rowErr, row)
				return rowErr
			}
			if stub {
				fs.StubsCreated++
				log.WithField("row", rowNum).Debug("created placeholder patient for treatment")
			}
			fs.Rows++
		}
		log.WithFields(logrus.Fields{"batch": fs.Batches, "rows": fs.Rows}).Debug("batch imported")
	}

	log.WithFields(logrus.Fields{"rows": fs.Rows, "stubs_created": fs.StubsCreated}).Info("file imported")
	return nil
}

// importRow normalizes and persists one row, reporting whether a placeholder
// patient document had to be created.
func (i *Importer) importRow(ctx context.Context, kind record.Kind, row record.Row) (bool, error) {
	ns := i.collection.Namespace()
	doc, err := institution.Normalize(i.adapter, kind, row)
	if err != nil {
		metrics.ObserveRejected(ns, string(kind))
		return false, err
	}
	metrics.ObserveNormalized(ns, string(kind))

	if kind == record.KindPatient {
		if err := i.collection.UpsertPatient(ctx, doc); err != nil {
			metrics.ObservePersistenceFailure(ns, "upsert_patient")
			return false, err
		}
		metrics.ObserveWrite(ns, "upsert_patient")
		return false, nil
	}

	patientID, ok := doc[record.FieldPatientID]
	if !ok {
		return false, ErrUnlinkedTreatment
	}
	if _, err := store.KeyOf(patientID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnlinkedTreatment, err)
	}

	op := "append_treatment"
	push := i.collection.AppendTreatment
	if i.opts.TreatmentMode == ModeUpsert {
		op = "upsert_treatment"
		push = i.collection.UpsertTreatment
	}
	created, err := push(ctx, patientID, doc)
	if err != nil {
		metrics.ObservePersistenceFailure(ns, op)
		return false, err
	}
	metrics.ObserveWrite(ns, op)
	if created {
		metrics.ObserveStub(ns)
	}
	return created, nil
}

func (i *Importer) deadLetter(ctx context.Context, runID string, rowErr *RowError, row record.Row) {
	if i.dlq == nil || errors.Is(rowErr, store.ErrPersistence) {
		return
	}
	rejected := models.RejectedRow{
		RunID:       runID,
		Institution: i.collection.Namespace(),
		Kind:        string(rowErr.Kind),
		Path:        rowErr.Path,
		Row:         rowErr.Row,
		Data:        rowData(row),
		Error:       rowErr.Err.Error(),
	}
	for _, v := range Violations(rowErr) {
		rejected.Violations = append(rejected.Violations, v.String())
	}
	i.publish(ctx, i.dlq, models.EventRejectedRow, rejected)
}

// publish is best effort: a failed notification never fails the import.
func (i *Importer) publish(ctx context.Context, p Publisher, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	data, err := toMap(payload)
	if err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Error("failed to encode event")
		return
	}
	if err := p.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish import event")
	}
}

func rowData(row record.Row) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for column, value := range row {
		if record.IsAbsent(value) {
			value = nil
		}
		out[column] = value
	}
	return out
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
