// Package extract turns voter register documents into raw table rows.
//
// Two sources are supported. [OpenPDF] and [NewPDF] read the typeset PDF
// directly: cover pages are trimmed, each page's table lattice is detected
// from its ruling rectangles, and glyphs are assigned to cells. [CSVRows]
// reads a table that was already extracted to CSV by another tool.
//
// Both produce the same lazy sequence of core.RawRow values, minus the
// table header, for core.ProcessDocument to consume.
package extract

import "errors"

var (
	// ErrNoPages is returned when trimming leaves no register pages.
	ErrNoPages = errors.New("no pages left after trimming")

	// ErrMalformed wraps failures of the PDF parser.
	ErrMalformed = errors.New("malformed PDF")
)

// Options controls page trimming and lattice detection.
type Options struct {
	SkipLeadingPages  int     // Cover pages dropped from the front
	SkipTrailingPages int     // Summary pages dropped from the back
	RowTolerance      float64 // Points within which edges or baselines merge
	MinRuleLength     float64 // Shortest rectangle side treated as a ruling line
}

// DefaultOptions returns the trimming used for the published register.
func DefaultOptions() Options {
	return Options{
		SkipLeadingPages:  2,
		SkipTrailingPages: 1,
		RowTolerance:      2.0,
		MinRuleLength:     4.0,
	}
}

// withDefaults fills unset geometry tolerances. Page counts are taken as
// given since zero is a valid choice.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RowTolerance <= 0 {
		o.RowTolerance = d.RowTolerance
	}
	if o.MinRuleLength <= 0 {
		o.MinRuleLength = d.MinRuleLength
	}
	if o.SkipLeadingPages < 0 {
		o.SkipLeadingPages = 0
	}
	if o.SkipTrailingPages < 0 {
		o.SkipTrailingPages = 0
	}
	return o
}

// PageRange returns the 1-based inclusive range of pages kept after trimming
// a document of total pages. ok is false when nothing is left.
func PageRange(total int, opts Options) (first, last int, ok bool) {
	first = opts.SkipLeadingPages + 1
	last = total - opts.SkipTrailingPages
	if first < 1 {
		first = 1
	}
	if last > total {
		last = total
	}
	if last < first {
		return 0, 0, false
	}
	return first, last, true
}
