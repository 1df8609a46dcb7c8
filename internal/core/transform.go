package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/VotersList/internal/thaana"
)

// ErrFieldCount is returned by Transform for rows that were not classified Valid.
var ErrFieldCount = errors.New("row does not have 8 fields")

// Transform builds a Record from a Valid row.
// Address_DV and Name_DV are decoded with reversal; every other field is
// copied verbatim. Field order is never changed.
func Transform(row RawRow) (Record, error) {
	var rec Record
	if len(row) != ExpectedFields {
		return rec, fmt.Errorf("%w: got %d", ErrFieldCount, len(row))
	}

	copy(rec[:], row)
	rec[FieldAddressDV] = thaana.Decode(row[FieldAddressDV], true)
	rec[FieldNameDV] = thaana.Decode(row[FieldNameDV], true)
	return rec, nil
}
