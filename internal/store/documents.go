package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/VotersList/internal/core"
)

// recordColumns is the voter_records column order used by CopyFrom.
var recordColumns = []string{
	"document_id", "line",
	"seq", "island", "house_name", "name", "sex", "national_id", "address_dv", "name_dv",
}

// Document is a stored conversion.
type Document struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash,omitempty"`
	RowsSeen    int       `json:"rows_seen"`
	Written     int       `json:"rows_written"`
	Skipped     int       `json:"rows_skipped"`
	Invalid     int       `json:"rows_invalid"`
	Trail       string    `json:"trail"`
	DurationMS  int64     `json:"duration_ms"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentTx streams one document's records into the database.
// It implements core.RecordWriter; records are buffered and copied in
// batches. The context given to BeginDocument is used for every copy.
type DocumentTx struct {
	ctx       context.Context
	tx        pgx.Tx
	id        pgtype.UUID
	batchSize int
	pending   [][]any
	line      int
	copied    int64
	done      bool
}

func startDocument(ctx context.Context, tx pgx.Tx, id, source, hash string, batchSize int) (*DocumentTx, error) {
	docID := ToPgUUID(id)
	if !docID.Valid {
		return nil, fmt.Errorf("invalid document id %q", id)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO documents (id, source, content_hash, client_ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5)`,
		docID, source, hash,
		ToPgText(core.GetIPAddressFromContext(ctx)),
		ToPgText(core.GetUserAgentFromContext(ctx)),
	)
	if IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("insert document %s: %w: %w", id, core.ErrDuplicateDocument, err)
	}
	if err != nil {
		return nil, fmt.Errorf("insert document %s: %w", id, err)
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentTx{
		ctx:       ctx,
		tx:        tx,
		id:        docID,
		batchSize: batchSize,
		pending:   make([][]any, 0, batchSize),
	}, nil
}

// WriteRecord buffers rec and copies the buffer once it is full.
func (d *DocumentTx) WriteRecord(rec core.Record) error {
	d.line++
	row := make([]any, 0, len(recordColumns))
	row = append(row, d.id, int32(d.line))
	for _, v := range rec {
		row = append(row, ToPgText(v))
	}
	d.pending = append(d.pending, row)

	if len(d.pending) >= d.batchSize {
		return d.flush(d.ctx)
	}
	return nil
}

func (d *DocumentTx) flush(ctx context.Context) error {
	if len(d.pending) == 0 {
		return nil
	}
	n, err := d.tx.CopyFrom(ctx, pgx.Identifier{"voter_records"}, recordColumns, pgx.CopyFromRows(d.pending))
	if err != nil {
		return fmt.Errorf("copy voter records: %w", err)
	}
	d.copied += n
	d.pending = d.pending[:0]
	return nil
}

// Copied returns the number of records sent to the database so far.
func (d *DocumentTx) Copied() int64 {
	return d.copied
}

// Commit copies any buffered records, stores the result counts and trail,
// and commits.
func (d *DocumentTx) Commit(ctx context.Context, res *core.DocumentResult) error {
	if d.done {
		return pgx.ErrTxClosed
	}
	if err := d.flush(ctx); err != nil {
		return err
	}
	if d.Copied() != int64(res.Written) {
		return fmt.Errorf("document %s: copied %d records, result has %d", res.DocumentID, d.Copied(), res.Written)
	}

	_, err := d.tx.Exec(ctx,
		`UPDATE documents
		    SET rows_seen = $2, rows_written = $3, rows_skipped = $4,
		        rows_invalid = $5, trail = $6, duration_ms = $7
		  WHERE id = $1`,
		d.id, res.RowsSeen, res.Written, res.Skipped,
		res.Invalid(), res.Trail(), res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	d.done = true
	if err := d.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the document. It is a no-op after Commit.
func (d *DocumentTx) Rollback(ctx context.Context) error {
	if d.done {
		return nil
	}
	d.done = true
	return d.tx.Rollback(ctx)
}

const documentColumns = `id, source, content_hash, rows_seen, rows_written, rows_skipped,
	rows_invalid, trail, duration_ms, client_ip, user_agent, created_at`

// ListDocuments returns the most recent documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// GetDocument returns one document or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	docID := ToPgUUID(id)
	if !docID.Valid {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, docID)
	doc, err := scanDocument(row)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Records returns up to limit stored records of a document in line order.
func (s *Store) Records(ctx context.Context, id string, limit int) ([]core.Record, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx,
		`SELECT seq, island, house_name, name, sex, national_id, address_dv, name_dv
		   FROM voter_records WHERE document_id = $1 ORDER BY line LIMIT $2`,
		ToPgUUID(id), limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var cols [core.ExpectedFields]pgtype.Text
		dest := make([]any, len(cols))
		for i := range cols {
			dest[i] = &cols[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		var rec core.Record
		for i, c := range cols {
			rec[i] = c.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		id        pgtype.UUID
		clientIP  pgtype.Text
		userAgent pgtype.Text
		createdAt pgtype.Timestamptz
		doc       Document
	)

	err := row.Scan(
		&id, &doc.Source, &doc.ContentHash,
		&doc.RowsSeen, &doc.Written, &doc.Skipped, &doc.Invalid,
		&doc.Trail, &doc.DurationMS, &clientIP, &userAgent, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ID = PgUUIDToString(id)
	doc.ClientIP = clientIP.String
	doc.UserAgent = userAgent.String
	doc.CreatedAt = createdAt.Time
	return &doc, nil
}
