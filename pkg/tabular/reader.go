package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
	"github.com/synaptica-ai/hospital-import/pkg/record"
)

const DefaultBatchSize = 1024

// Batch is a run of consecutive rows. Start is the 1-based data row number of the
// first row (the header is row 0).
type Batch struct {
	Columns []string
	Rows    []record.Row
	Start   int
}

type Options struct {
	BatchSize int
	// Encoding is applied when the input carries no byte order mark:
	// "utf-8" (default), "latin-1" or "windows-1252".
	Encoding string
}

// Reader streams a delimited file in fixed-size batches, preserving row order.
type Reader struct {
	csv       *csv.Reader
	closer    io.Closer
	name      string
	columns   []string
	batchSize int
	rowNum    int
	done      bool
}

// Open opens a CSV file for batched reading.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	r.name = path
	return r, nil
}

func NewReader(src io.Reader, opts Options) (*Reader, error) {
	decoded, err := decode(src, opts.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Reader{
		csv:       cr,
		columns:   headerColumns(header),
		batchSize: batchSize,
	}, nil
}

func (r *Reader) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Next returns the next batch, or io.EOF once every row has been returned.
func (r *Reader) Next(ctx context.Context) (*Batch, error) {
	if r.done {
		return nil, io.EOF
	}
	batch := &Batch{Columns: r.columns, Start: r.rowNum + 1}
	for len(batch.Rows) < r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.rowNum+1, err)
		}
		r.rowNum++
		batch.Rows = append(batch.Rows, r.toRow(fields))
	}
	if len(batch.Rows) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) toRow(fields []string) record.Row {
	if len(fields) != len(r.columns) {
		logger.WithFields(map[string]interface{}{
			"file":     r.name,
			"row":      r.rowNum,
			"columns":  len(fields),
			"expected": len(r.columns),
		}).Warn("ragged row; padding or truncating to header width")
	}
	row := make(record.Row, len(r.columns))
	for i, column := range r.columns {
		if i < len(fields) {
			row[column] = ParseCell(fields[i])
		} else {
			row[column] = record.Absent
		}
	}
	return row
}

// headerColumns trims header names and disambiguates duplicates as name.1, name.2.
func headerColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}
