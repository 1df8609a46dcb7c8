package core

// validation.go classifies extracted rows before they become records.
//
// Every cell is normalized first: runs of non-word characters collapse to a
// single space, then empty cells are dropped. Only after that is the row
// length checked, so a visual row with sparse columns can still validate if
// exactly eight non-empty cells remain. The order (collapse, drop, count)
// decides which malformed rows are accepted and must not change.

import "regexp"

// InvalidRowReason is recorded for every row with the wrong cell count.
const InvalidRowReason = "Invalid row count encountered"

// nonWordRun matches runs of characters that are not letters, digits or underscore.
var nonWordRun = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// CollapseCell replaces every run of non-word characters with a single space.
func CollapseCell(cell string) string {
	return nonWordRun.ReplaceAllString(cell, " ")
}

// NormalizeRow collapses each cell and drops the ones left empty.
// The input row is not modified.
func NormalizeRow(row RawRow) RawRow {
	out := make(RawRow, 0, len(row))
	for _, cell := range row {
		cell = CollapseCell(cell)
		if cell == "" {
			continue
		}
		out = append(out, cell)
	}
	return out
}

// Classify normalizes row and decides whether it is a record, an artifact,
// or a shape error.
//
//   - one cell: Skip (stray text the extractor split off a visual line)
//   - eight cells: Valid
//   - anything else, including zero cells: Invalid
func Classify(row RawRow) Outcome {
	norm := NormalizeRow(row)

	switch len(norm) {
	case 1:
		return Outcome{Kind: Skip, Row: norm}
	case ExpectedFields:
		return Outcome{Kind: Valid, Row: norm}
	default:
		return Outcome{Kind: Invalid, Row: norm, Reason: InvalidRowReason}
	}
}
