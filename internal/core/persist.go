package core

import (
	"context"
	"errors"
)

// ErrDuplicateDocument is returned by BeginDocument when content with the
// same hash has already been stored.
var ErrDuplicateDocument = errors.New("document already stored")

// DocumentTx receives one document's records and is finalized with the
// document's result. Exactly one of Commit or Rollback must be called.
type DocumentTx interface {
	RecordWriter
	Commit(ctx context.Context, res *DocumentResult) error
	Rollback(ctx context.Context) error
}

// DocumentStore persists processed documents.
type DocumentStore interface {
	// SeenHash reports whether content with this hash was already stored.
	SeenHash(ctx context.Context, hash string) (bool, error)

	// BeginDocument starts persisting the document with the given ID.
	// It returns an error wrapping ErrDuplicateDocument when the hash is
	// already stored.
	BeginDocument(ctx context.Context, id, source, hash string) (DocumentTx, error)
}
