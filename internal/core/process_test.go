package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"iter"
	"strings"
	"testing"
)

var sampleRow = RawRow{"1", "Male'", "Test House", "Ahmed", "M", "A123456", "bnda", "AHMED"}

func TestTransform(t *testing.T) {
	rec, err := Transform(NormalizeRow(sampleRow))
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	want := Record{"1", "Male ", "Test House", "Ahmed", "M", "A123456", "\u0787\u078B\u0782\u0784", "\u0791\u07ADM\u0799\u07A2"}
	if rec != want {
		t.Errorf("Transform() = %q, want %q", rec, want)
	}
}

func TestTransform_OnlyScriptFieldsDecoded(t *testing.T) {
	row := RawRow{"h", "a", "b", "n", "d", "r", "h", "a"}
	rec, err := Transform(row)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < FieldAddressDV; i++ {
		if rec[i] != row[i] {
			t.Errorf("field %d = %q, want verbatim %q", i, rec[i], row[i])
		}
	}
	if rec[FieldAddressDV] != "\u0780" || rec[FieldNameDV] != "\u0787" {
		t.Errorf("script fields = %q, %q", rec[FieldAddressDV], rec[FieldNameDV])
	}
}

func TestTransform_WrongShape(t *testing.T) {
	_, err := Transform(RawRow{"1", "2"})
	if !errors.Is(err, ErrFieldCount) {
		t.Errorf("Transform() error = %v, want ErrFieldCount", err)
	}
}

// collect is a RecordWriter that keeps records in memory.
type collect struct {
	records []Record
}

func (c *collect) WriteRecord(r Record) error {
	c.records = append(c.records, r)
	return nil
}

func TestProcessDocument_EndToEnd(t *testing.T) {
	rows := []RawRow{
		sampleRow,
		{"2", "Male'", "Other"},
		{"garbage"},
		{"", "", ""},
		{"3", "Male'", "Blue House", "Aisha", "F", "A654321", "hwvw", "aisw"},
	}

	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf, OutputOptions{})
	if err != nil {
		t.Fatal(err)
	}

	res, err := ProcessDocument(context.Background(), "PDF/list.pdf", SliceRows(rows), w)
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if res.DocumentID == "" {
		t.Error("DocumentID not set")
	}
	if res.RowsSeen != 5 || res.Written != 2 || res.Skipped != 1 || res.Invalid() != 2 {
		t.Errorf("counts = seen %d written %d skipped %d invalid %d", res.RowsSeen, res.Written, res.Skipped, res.Invalid())
	}

	lines, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d CSV lines, want header + 2", len(lines))
	}
	if strings.Join(lines[0], ",") != "#,Island,House Name,Name,Sex,National ID,Address_DV,Name_DV" {
		t.Errorf("header = %q", lines[0])
	}
	first := lines[1]
	if len(first) != 8 {
		t.Fatalf("record has %d fields, want 8", len(first))
	}
	if first[2] != "Test House" || first[6] != "\u0787\u078B\u0782\u0784" || first[7] != "\u0791\u07ADM\u0799\u07A2" {
		t.Errorf("record = %q", first)
	}

	if res.Errors[0].Line != 2 || res.Errors[1].Line != 4 {
		t.Errorf("error lines = %d, %d; want 2, 4", res.Errors[0].Line, res.Errors[1].Line)
	}
}

func TestProcessDocument_InvalidRowTrail(t *testing.T) {
	row := RawRow{"1", "Male'", "House", "Ahmed", "M"}
	var out collect

	res, err := ProcessDocument(context.Background(), "doc.pdf", SliceRows([]RawRow{row}), &out)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.records) != 0 {
		t.Errorf("invalid row produced %d records", len(out.records))
	}

	trail := res.Trail()
	want := `doc.pdf::Invalid row count encountered::["1" "Male " "House" "Ahmed" "M"]`
	if trail != want {
		t.Errorf("Trail() = %q, want %q", trail, want)
	}
}

func TestProcessDocument_SkipRowLeavesNoTrace(t *testing.T) {
	var out collect
	res, err := ProcessDocument(context.Background(), "doc.pdf", SliceRows([]RawRow{{"garbage"}}), &out)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.records) != 0 || res.Invalid() != 0 || res.Skipped != 1 {
		t.Errorf("records %d, invalid %d, skipped %d", len(out.records), res.Invalid(), res.Skipped)
	}
	if res.Trail() != "doc.pdf" {
		t.Errorf("Trail() = %q, want bare identifier", res.Trail())
	}
}

func TestProcessDocument_AdapterErrorIsFatal(t *testing.T) {
	boom := errors.New("page 4: broken stream")
	rows := func(yield func(RawRow, error) bool) {
		if !yield(sampleRow, nil) {
			return
		}
		yield(nil, boom)
	}

	var out collect
	res, err := ProcessDocument(context.Background(), "doc.pdf", iter.Seq2[RawRow, error](rows), &out)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if res == nil || res.Written != 1 {
		t.Errorf("partial result lost: %+v", res)
	}
}

func TestProcessDocument_WriterErrorIsFatal(t *testing.T) {
	full := errors.New("disk full")
	w := RecordWriterFunc(func(Record) error { return full })

	_, err := ProcessDocument(context.Background(), "doc.pdf", SliceRows([]RawRow{sampleRow, sampleRow}), w)
	if !errors.Is(err, full) {
		t.Fatalf("error = %v, want %v", err, full)
	}
}

func TestProcessDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := make([]RawRow, ContextCheckInterval+5)
	for i := range rows {
		rows[i] = sampleRow
	}
	w := &collect{}

	res, err := ProcessDocument(ctx, "doc.pdf", SliceRows(rows), w)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res.RowsSeen != ContextCheckInterval || res.Written != ContextCheckInterval-1 {
		t.Errorf("stopped after %d rows with %d written, want %d and %d",
			res.RowsSeen, res.Written, ContextCheckInterval, ContextCheckInterval-1)
	}
}

func TestProcessDocument_StopsPullingOnError(t *testing.T) {
	pulled := 0
	rows := func(yield func(RawRow, error) bool) {
		for i := 0; i < 10; i++ {
			pulled++
			if !yield(sampleRow, nil) {
				return
			}
		}
	}

	calls := 0
	w := RecordWriterFunc(func(Record) error {
		calls++
		if calls == 3 {
			return errors.New("stop")
		}
		return nil
	})

	if _, err := ProcessDocument(context.Background(), "doc.pdf", rows, w); err == nil {
		t.Fatal("expected error")
	}
	if pulled != 3 {
		t.Errorf("pulled %d rows, want 3", pulled)
	}
}

func TestMultiRecordWriter(t *testing.T) {
	var a, b collect
	w := MultiRecordWriter(&a, nil, &b)
	if err := w.WriteRecord(Record{"x"}); err != nil {
		t.Fatal(err)
	}
	if len(a.records) != 1 || len(b.records) != 1 {
		t.Errorf("fan-out failed: %d, %d", len(a.records), len(b.records))
	}
}

func TestProcessDocument_DocumentIDFromContext(t *testing.T) {
	ctx := WithDocumentID(context.Background(), "fixed-id")
	res, err := ProcessDocument(ctx, "doc.pdf", SliceRows(nil), &collect{})
	if err != nil {
		t.Fatal(err)
	}
	if res.DocumentID != "fixed-id" {
		t.Errorf("DocumentID = %q, want fixed-id", res.DocumentID)
	}
}

func TestClientContext(t *testing.T) {
	ctx := ContextWithUserAgent(ContextWithIPAddress(context.Background(), "10.0.0.1"), "curl/8")
	if GetIPAddressFromContext(ctx) != "10.0.0.1" || GetUserAgentFromContext(ctx) != "curl/8" {
		t.Error("client values not carried by context")
	}
	if GetIPAddressFromContext(context.Background()) != "" || DocumentIDFromContext(context.Background()) != "" {
		t.Error("empty context should yield empty values")
	}
}
