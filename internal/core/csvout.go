package core

// csvout.go writes records as CSV.
//
// The output stack is csv.Writer -> optional UTF-8 BOM -> optional gzip -> sink.
// Close flushes every layer in that order; the underlying writer is not closed.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported output compressions.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// ErrUnknownCompression is returned for an unsupported OutputOptions.Compression.
var ErrUnknownCompression = errors.New("unknown compression")

// OutputOptions controls the CSV artifact format.
type OutputOptions struct {
	BOM         bool   // Prefix a UTF-8 byte order mark (for spreadsheet tools)
	Compression string // CompressionNone or CompressionGzip
}

// Extension returns the file extension for the configured format.
func (o OutputOptions) Extension() string {
	if strings.EqualFold(o.Compression, CompressionGzip) {
		return ".csv.gz"
	}
	return ".csv"
}

// ContentType returns the MIME type for the configured format.
func (o OutputOptions) ContentType() string {
	if strings.EqualFold(o.Compression, CompressionGzip) {
		return "application/gzip"
	}
	return "text/csv; charset=utf-8"
}

// OutputName derives the artifact name from a source file name.
// The source extension is kept, so "list.pdf" becomes "list.pdf.csv".
func OutputName(source string, opts OutputOptions) string {
	return source + opts.Extension()
}

// CSVWriter writes the canonical header followed by one line per record.
type CSVWriter struct {
	csv  *csv.Writer
	bom  *transform.Writer
	gz   *gzip.Writer
	rows int
}

// NewCSVWriter wraps w and writes the header immediately.
func NewCSVWriter(w io.Writer, opts OutputOptions) (*CSVWriter, error) {
	cw := &CSVWriter{}

	switch strings.ToLower(opts.Compression) {
	case "", CompressionNone:
	case CompressionGzip:
		cw.gz = gzip.NewWriter(w)
		w = cw.gz
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, opts.Compression)
	}

	if opts.BOM {
		cw.bom = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		w = cw.bom
	}

	cw.csv = csv.NewWriter(w)
	if err := cw.csv.Write(Header[:]); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return cw, nil
}

// WriteRecord implements RecordWriter.
func (w *CSVWriter) WriteRecord(rec Record) error {
	if err := w.csv.Write(rec.Strings()); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of records written, excluding the header.
func (w *CSVWriter) Rows() int {
	return w.rows
}

// Close flushes buffered data through every layer.
func (w *CSVWriter) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if w.bom != nil {
		if err := w.bom.Close(); err != nil {
			return fmt.Errorf("flush bom writer: %w", err)
		}
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return fmt.Errorf("close gzip: %w", err)
		}
	}
	return nil
}
