package extract

import (
	"bytes"
	"context"
	"iter"

	"github.com/JonMunkholm/VotersList/internal/core"
)

// PDF extracts rows from PDF file contents.
type PDF struct {
	Options Options
}

// Extension is the input file extension PDF accepts.
func (PDF) Extension() string { return ".pdf" }

// Rows opens data as a PDF and returns its lazy row sequence.
func (p PDF) Rows(ctx context.Context, data []byte) (iter.Seq2[core.RawRow, error], error) {
	doc, err := NewPDF(bytes.NewReader(data), int64(len(data)), p.Options)
	if err != nil {
		return nil, err
	}
	return doc.Rows(ctx), nil
}

// CSV extracts rows from a pre-extracted table.
type CSV struct{}

// Extension is the input file extension CSV accepts.
func (CSV) Extension() string { return ".csv" }

// Rows returns the table's lazy row sequence. It never fails up front;
// parse errors surface during iteration.
func (CSV) Rows(ctx context.Context, data []byte) (iter.Seq2[core.RawRow, error], error) {
	return CSVRows(ctx, bytes.NewReader(data)), nil
}
