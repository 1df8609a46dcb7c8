package core

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ContentHash returns a 16 hex character xxh3 digest of a source document.
// Identical uploads hash identically, which the store uses for dedupe.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
