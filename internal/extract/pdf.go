package extract

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/JonMunkholm/VotersList/internal/core"
)

// Document is an opened register PDF.
// Rows may be iterated once per Document.
type Document struct {
	reader *pdf.Reader
	closer io.Closer
	opts   Options
	first  int
	last   int
}

// OpenPDF opens the PDF at path. The caller must Close the document.
func OpenPDF(path string, opts Options) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, ErrMalformed, err)
	}

	doc, err := newDocument(r, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	doc.closer = f
	return doc, nil
}

// NewPDF reads a PDF from r, which must remain valid until iteration ends.
func NewPDF(r io.ReaderAt, size int64, opts Options) (*Document, error) {
	pr, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return newDocument(pr, opts)
}

func newDocument(r *pdf.Reader, opts Options) (*Document, error) {
	opts = opts.withDefaults()

	total := r.NumPage()
	first, last, ok := PageRange(total, opts)
	if !ok {
		return nil, fmt.Errorf("%w: document has %d pages", ErrNoPages, total)
	}

	return &Document{
		reader: r,
		opts:   opts,
		first:  first,
		last:   last,
	}, nil
}

// Pages returns the 1-based inclusive range of pages that Rows reads.
func (d *Document) Pages() (first, last int) {
	return d.first, d.last
}

// Close releases the underlying file, if any.
func (d *Document) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Rows yields the document's table rows in page order. The first row, the
// table header, is dropped. Iteration stops with ctx.Err() once the context
// is done, checked between pages.
func (d *Document) Rows(ctx context.Context) iter.Seq2[core.RawRow, error] {
	return func(yield func(core.RawRow, error) bool) {
		header := true

		for n := d.first; n <= d.last; n++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			glyphs, rules, err := d.pageContent(n)
			if err != nil {
				yield(nil, err)
				return
			}

			rows := PageRows(glyphs, rules, d.opts)
			slog.Debug("page extracted",
				"page", n,
				"glyphs", len(glyphs),
				"rules", len(rules),
				"rows", len(rows),
			)

			for _, row := range rows {
				if header {
					header = false
					continue
				}
				if !yield(core.RawRow(row), nil) {
					return
				}
			}
		}
	}
}

// pageContent reads the positioned text and rectangles of page n.
// The parser panics on some malformed content streams; that is reported as
// ErrMalformed for the page.
func (d *Document) pageContent(n int) (glyphs []Glyph, rules []Rule, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %w: %v", n, ErrMalformed, r)
		}
	}()

	p := d.reader.Page(n)
	if p.V.IsNull() {
		return nil, nil, nil
	}

	content := p.Content()

	glyphs = make([]Glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}

	rules = make([]Rule, 0, len(content.Rect))
	for _, r := range content.Rect {
		rules = append(rules, Rule{
			MinX: min(r.Min.X, r.Max.X),
			MinY: min(r.Min.Y, r.Max.Y),
			MaxX: max(r.Min.X, r.Max.X),
			MaxY: max(r.Min.Y, r.Max.Y),
		})
	}
	return glyphs, rules, nil
}
