package core

// process.go drives one document through the pipeline.
//
// Rows are pulled one at a time from the adapter's sequence, classified,
// and either written as records or appended to the document's error list.
// Nothing at row level aborts a document: only a failing adapter or a
// failing record writer does, and those are returned with the partial result.

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextCheckInterval is how often (in rows) to check for cancellation.
const ContextCheckInterval = 100

// RecordWriter receives validated records in document order.
type RecordWriter interface {
	WriteRecord(Record) error
}

// RecordWriterFunc adapts a function to RecordWriter.
type RecordWriterFunc func(Record) error

// WriteRecord calls f(rec).
func (f RecordWriterFunc) WriteRecord(rec Record) error {
	return f(rec)
}

type multiRecordWriter []RecordWriter

func (m multiRecordWriter) WriteRecord(rec Record) error {
	for _, w := range m {
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

// MultiRecordWriter writes each record to every writer in order and stops at
// the first error. Nil writers are ignored.
func MultiRecordWriter(writers ...RecordWriter) RecordWriter {
	out := make(multiRecordWriter, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

// ProcessDocument consumes rows for one document and writes its records to w.
//
// source identifies the document in the trail (normally the input path).
// The document ID comes from WithDocumentID when set, otherwise a new UUID.
// The returned result is never nil; on error it holds what was processed
// before the failure.
func ProcessDocument(ctx context.Context, source string, rows iter.Seq2[RawRow, error], w RecordWriter) (*DocumentResult, error) {
	start := time.Now()

	id := DocumentIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	result := &DocumentResult{
		DocumentID: id,
		Source:     source,
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	line := 0
	for row, err := range rows {
		if err != nil {
			return result, fmt.Errorf("read rows from %s: %w", source, err)
		}

		line++
		result.RowsSeen++

		if line%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return result, fmt.Errorf("processing cancelled at row %d: %w", line, err)
			}
		}

		out := Classify(row)
		switch out.Kind {
		case Skip:
			result.Skipped++
			continue

		case Invalid:
			result.Errors = append(result.Errors, ErrorEntry{
				Line:   line,
				Reason: out.Reason,
				Row:    out.Row,
			})
			slog.Debug("invalid row",
				"source", source,
				"line", line,
				"cells", len(out.Row),
			)
			continue
		}

		rec, err := Transform(out.Row)
		if err != nil {
			// Classify guarantees the shape; reaching this is a bug.
			return result, fmt.Errorf("transform row %d: %w", line, err)
		}

		if err := w.WriteRecord(rec); err != nil {
			return result, fmt.Errorf("write record at row %d: %w", line, err)
		}
		result.Written++
	}

	return result, nil
}

// SliceRows adapts an in-memory table to the row sequence ProcessDocument expects.
func SliceRows(rows []RawRow) iter.Seq2[RawRow, error] {
	return func(yield func(RawRow, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}
