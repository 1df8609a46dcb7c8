package core

import (
	"fmt"
	"time"
)

// ExpectedFields is the number of non-empty cells a register row must have.
const ExpectedFields = 8

// Canonical field positions.
const (
	FieldSeq = iota
	FieldIsland
	FieldHouseName
	FieldName
	FieldSex
	FieldNationalID
	FieldAddressDV
	FieldNameDV
)

// Header is the canonical CSV header, in output order.
var Header = [ExpectedFields]string{
	"#", "Island", "House Name", "Name", "Sex", "National ID", "Address_DV", "Name_DV",
}

// RawRow is one table row as produced by an extraction adapter.
// Its length depends on how the adapter split the visual line.
type RawRow []string

// String renders the row for the diagnostic trail.
func (r RawRow) String() string {
	return fmt.Sprintf("%q", []string(r))
}

// Record is a validated register row in canonical field order.
// Address_DV and Name_DV hold decoded Thaana.
type Record [ExpectedFields]string

// Strings returns the record as a slice for CSV writing.
func (r Record) Strings() []string {
	out := make([]string, ExpectedFields)
	copy(out, r[:])
	return out
}

// OutcomeKind classifies a raw row.
type OutcomeKind int

const (
	// Valid rows become records.
	Valid OutcomeKind = iota
	// Skip rows are single-cell extraction artifacts; they are not errors.
	Skip
	// Invalid rows have the wrong shape and go to the diagnostic trail.
	Invalid
)

func (k OutcomeKind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Skip:
		return "skip"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Outcome is the result of classifying one row.
// Row holds the normalized cells; Reason is set only for Invalid.
type Outcome struct {
	Kind   OutcomeKind
	Row    RawRow
	Reason string
}

// ErrorEntry is one Invalid row kept for the diagnostic trail.
type ErrorEntry struct {
	Line   int    // 1-based row ordinal after the header
	Reason string // Human-readable reason
	Row    RawRow // Normalized row content
}

// String renders the entry the way it appears in the trail.
func (e ErrorEntry) String() string {
	return e.Reason + TrailSeparator + e.Row.String()
}

// DocumentResult summarizes one processed document.
type DocumentResult struct {
	DocumentID  string
	Source      string // Source identifier (usually the input path)
	ContentHash string // xxh3 of the source bytes, when known
	RowsSeen    int
	Written     int
	Skipped     int
	Errors      []ErrorEntry
	Duration    time.Duration
}

// Invalid returns the number of rows routed to the trail.
func (d *DocumentResult) Invalid() int {
	return len(d.Errors)
}
