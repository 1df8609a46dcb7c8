package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/VotersList/internal/core"
)

// CSVRows yields the rows of a pre-extracted table read from r.
//
// A leading byte order mark is dropped and invalid UTF-8 is replaced with
// U+FFFD before parsing. The first record is the table header and is not
// yielded. Records may have any number of fields.
func CSVRows(ctx context.Context, r io.Reader) iter.Seq2[core.RawRow, error] {
	return func(yield func(core.RawRow, error) bool) {
		decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

		cr := csv.NewReader(decoded)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true

		if _, err := cr.Read(); err != nil {
			if !errors.Is(err, io.EOF) {
				yield(nil, fmt.Errorf("read header: %w", err))
			}
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("read csv: %w", err))
				return
			}
			if !yield(core.RawRow(rec), nil) {
				return
			}
		}
	}
}
