package core

import (
	"bytes"
	"errors"
	"testing"
)

func TestDocumentResult_Trail(t *testing.T) {
	res := &DocumentResult{
		Source: "PDF/a.pdf",
		Errors: []ErrorEntry{
			{Line: 3, Reason: InvalidRowReason, Row: RawRow{"1", "x"}},
			{Line: 9, Reason: InvalidRowReason, Row: RawRow{}},
		},
	}

	want := `PDF/a.pdf::Invalid row count encountered::["1" "x"]::Invalid row count encountered::[]`
	if got := res.Trail(); got != want {
		t.Errorf("Trail() = %q, want %q", got, want)
	}
}

func TestErrorEntry_String(t *testing.T) {
	e := ErrorEntry{Reason: InvalidRowReason, Row: RawRow{"a \"b\""}}
	want := `Invalid row count encountered::["a \"b\""]`
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var r Report
	r.Add(&DocumentResult{Source: "a.pdf"})
	r.Add(&DocumentResult{Source: "b.pdf", Errors: []ErrorEntry{{Reason: InvalidRowReason, Row: RawRow{"q"}}}})
	r.AddFailure("c.pdf", errors.New("malformed PDF"))

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	want := "a.pdf\n" +
		`b.pdf::Invalid row count encountered::["q"]` + "\n" +
		"c.pdf::error: malformed PDF"
	if got := r.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(want)) || buf.String() != want {
		t.Errorf("WriteTo wrote %d bytes %q", n, buf.String())
	}
}

func TestReport_Empty(t *testing.T) {
	var r Report
	if r.String() != "" || r.Len() != 0 {
		t.Errorf("empty report = %q (%d)", r.String(), r.Len())
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("%PDF-1.4 one"))
	b := ContentHash([]byte("%PDF-1.4 two"))
	if len(a) != 16 {
		t.Errorf("len = %d, want 16", len(a))
	}
	if a == b {
		t.Error("different content should hash differently")
	}
	if a != ContentHash([]byte("%PDF-1.4 one")) {
		t.Error("hash is not stable")
	}
}
