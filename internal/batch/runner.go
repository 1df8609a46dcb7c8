// Package batch converts every register document in a directory.
//
// Documents are converted concurrently, each to its own CSV artifact.
// Once all workers finish, the per-document trails are assembled in input
// order into the extraction report, which is written through the same sink.
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/VotersList/internal/core"
	"github.com/JonMunkholm/VotersList/internal/logging"
	"github.com/JonMunkholm/VotersList/internal/sink"
)

// Extractor turns a document's bytes into rows.
type Extractor interface {
	Extension() string
	Rows(ctx context.Context, data []byte) (iter.Seq2[core.RawRow, error], error)
}

// Options tunes a Runner.
type Options struct {
	Workers int                // Documents converted at once (default: limiter capacity)
	Output  core.OutputOptions // CSV artifact format
}

// Runner converts a directory of documents.
// Store is optional; without it no deduplication or persistence happens.
type Runner struct {
	Extractor Extractor
	Sink      sink.Sink
	Store     core.DocumentStore
	Limiter   *core.DocumentLimiter
	Options   Options
}

// Failure is a document that could not be converted.
type Failure struct {
	Source string
	Err    error
}

// Summary describes a finished run.
type Summary struct {
	Documents   int
	Converted   int
	Duplicates  int
	RowsWritten int
	RowsSkipped int
	RowsInvalid int
	Results     []*core.DocumentResult
	Failures    []Failure
	Duration    time.Duration
}

// Failed returns the number of documents that could not be converted.
func (s *Summary) Failed() int {
	return len(s.Failures)
}

type outcome struct {
	result    *core.DocumentResult
	err       error
	duplicate bool
}

// ListInputs returns the files in dir whose extension matches ext, ignoring
// case, sorted by name. Subdirectories are not searched.
func ListInputs(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Run converts every matching document in inputDir.
//
// A document that fails is recorded in the summary and the report and does
// not stop the others. The returned error is non-nil only when the run as a
// whole could not proceed: the input directory is unreadable, the report
// could not be written, or ctx was cancelled.
func (r *Runner) Run(ctx context.Context, inputDir string) (*Summary, error) {
	start := time.Now()

	if r.Extractor == nil || r.Sink == nil {
		return nil, errors.New("batch runner needs an extractor and a sink")
	}
	limiter := r.Limiter
	if limiter == nil {
		limiter = core.NewDocumentLimiter(core.DefaultMaxConcurrentDocuments, core.DefaultSlotWait)
	}
	workers := r.Options.Workers
	if workers <= 0 || workers > limiter.Capacity() {
		workers = limiter.Capacity()
	}

	files, err := ListInputs(inputDir, r.Extractor.Extension())
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("batch started",
		"input", inputDir,
		"documents", len(files),
		"workers", workers,
	)

	outcomes := make([]outcome, len(files))
	var done atomic.Int32

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			outcomes[i] = r.convert(ctx, limiter, path)
			n := done.Add(1)

			log := logging.WithFields(ctx, "source", path, "progress", fmt.Sprintf("%d/%d", n, len(files)))
			switch o := outcomes[i]; {
			case o.duplicate:
				log.Info("document skipped, already converted")
			case o.err != nil:
				log.Error("document failed", "error", o.err)
			default:
				log.Info("document converted",
					"document_id", o.result.DocumentID,
					"written", o.result.Written,
					"invalid", o.result.Invalid(),
					"duration_ms", o.result.Duration.Milliseconds(),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Documents: len(files)}
	var report core.Report
	for i, o := range outcomes {
		switch {
		case o.duplicate:
			summary.Duplicates++
		case o.err != nil:
			summary.Failures = append(summary.Failures, Failure{Source: files[i], Err: o.err})
			report.AddFailure(files[i], o.err)
		default:
			summary.Converted++
			summary.RowsWritten += o.result.Written
			summary.RowsSkipped += o.result.Skipped
			summary.RowsInvalid += o.result.Invalid()
			summary.Results = append(summary.Results, o.result)
			report.Add(o.result)
		}
	}

	var buf bytes.Buffer
	if _, err := report.WriteTo(&buf); err != nil {
		return summary, fmt.Errorf("render report: %w", err)
	}
	if err := r.Sink.Put(context.WithoutCancel(ctx), core.ReportFileName, &buf); err != nil {
		return summary, fmt.Errorf("write report: %w", err)
	}

	summary.Duration = time.Since(start)
	logging.FromContext(ctx).Info("batch finished",
		"converted", summary.Converted,
		"failed", summary.Failed(),
		"duplicates", summary.Duplicates,
		"rows_written", summary.RowsWritten,
		"rows_invalid", summary.RowsInvalid,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// convert runs one document end to end: read, dedupe, extract, write CSV,
// persist.
func (r *Runner) convert(ctx context.Context, limiter *core.DocumentLimiter, path string) outcome {
	if err := limiter.Acquire(ctx); err != nil {
		return outcome{err: err}
	}
	defer limiter.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		return outcome{err: fmt.Errorf("read document: %w", err)}
	}
	hash := core.ContentHash(data)

	if r.Store != nil {
		seen, err := r.Store.SeenHash(ctx, hash)
		if err != nil {
			return outcome{err: err}
		}
		if seen {
			return outcome{duplicate: true}
		}
	}

	rows, err := r.Extractor.Rows(ctx, data)
	if err != nil {
		return outcome{err: err}
	}

	id := uuid.NewString()
	ctx = core.WithDocumentID(ctx, id)

	var tx core.DocumentTx
	if r.Store != nil {
		tx, err = r.Store.BeginDocument(ctx, id, path, hash)
		if errors.Is(err, core.ErrDuplicateDocument) {
			// Same content stored by a concurrent worker.
			return outcome{duplicate: true}
		}
		if err != nil {
			return outcome{err: err}
		}
	}

	key := core.OutputName(filepath.Base(path), r.Options.Output)
	res, err := r.writeDocument(ctx, key, path, rows, tx)
	if err != nil {
		if tx != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logging.FromContext(ctx).Warn("rollback failed", "error", rbErr)
			}
		}
		return outcome{err: err}
	}
	res.ContentHash = hash

	if tx != nil {
		if err := tx.Commit(ctx, res); err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logging.FromContext(ctx).Warn("rollback failed", "error", rbErr)
			}
			return outcome{err: err}
		}
	}
	return outcome{result: res}
}

// writeDocument streams the document's CSV to the sink under key while the
// rows are processed. The artifact is complete once it returns nil; on
// error the sink sees a failed read and keeps nothing.
func (r *Runner) writeDocument(ctx context.Context, key, source string, rows iter.Seq2[core.RawRow, error], tx core.DocumentTx) (*core.DocumentResult, error) {
	pr, pw := io.Pipe()
	put := make(chan error, 1)
	go func() {
		err := r.Sink.Put(ctx, key, pr)
		// Unblock the writer if the sink stopped reading early.
		_ = pr.CloseWithError(err)
		put <- err
	}()

	res, err := processTo(ctx, source, rows, pw, r.Options.Output, tx)
	_ = pw.CloseWithError(err)

	if putErr := <-put; putErr != nil && err == nil {
		err = fmt.Errorf("store %s: %w", key, putErr)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// processTo writes the CSV for rows to w, and the records to tx when set.
func processTo(ctx context.Context, source string, rows iter.Seq2[core.RawRow, error], w io.Writer, opts core.OutputOptions, tx core.DocumentTx) (*core.DocumentResult, error) {
	csvw, err := core.NewCSVWriter(w, opts)
	if err != nil {
		return nil, err
	}

	var rw core.RecordWriter = csvw
	if tx != nil {
		rw = core.MultiRecordWriter(csvw, tx)
	}

	res, err := core.ProcessDocument(ctx, source, rows, rw)
	if err != nil {
		return nil, err
	}
	if err := csvw.Close(); err != nil {
		return nil, err
	}
	return res, nil
}
