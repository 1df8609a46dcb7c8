package core

import (
	"io"
	"strings"
)

// TrailSeparator joins the parts of one document's diagnostic trail.
const TrailSeparator = "::"

// ReportFileName is the process-wide diagnostics artifact.
const ReportFileName = "extraction_report.log"

// Trail renders the document's diagnostics: the source identifier followed
// by a reason and a row for each Invalid row, joined by TrailSeparator.
// A clean document renders as just its identifier.
func (d *DocumentResult) Trail() string {
	parts := make([]string, 0, 1+2*len(d.Errors))
	parts = append(parts, d.Source)
	for _, e := range d.Errors {
		parts = append(parts, e.Reason, e.Row.String())
	}
	return strings.Join(parts, TrailSeparator)
}

// Report collects per-document trails for the diagnostics artifact.
// It is not safe for concurrent use; callers add entries after workers finish.
type Report struct {
	lines []string
}

// Add appends the trail of a processed document.
func (r *Report) Add(res *DocumentResult) {
	r.lines = append(r.lines, res.Trail())
}

// AddFailure records a document that could not be processed at all.
func (r *Report) AddFailure(source string, err error) {
	r.lines = append(r.lines, source+TrailSeparator+"error: "+err.Error())
}

// Len returns the number of documents in the report.
func (r *Report) Len() int {
	return len(r.lines)
}

// String joins all trails with newlines.
func (r *Report) String() string {
	return strings.Join(r.lines, "\n")
}

// WriteTo writes the report to w.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}
