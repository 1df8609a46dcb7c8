package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/VotersList/internal/core"
	"github.com/JonMunkholm/VotersList/internal/extract"
	"github.com/JonMunkholm/VotersList/internal/logging"
)

// ConvertResponse is the JSON form of a conversion (?format=json).
type ConvertResponse struct {
	DocumentID string          `json:"document_id"`
	Source     string          `json:"source"`
	Stored     bool            `json:"stored"`
	Header     []string        `json:"header"`
	Records    [][]string      `json:"records"`
	Errors     []ErrorEntryDTO `json:"errors"`
	Trail      string          `json:"trail"`
	RowsSeen   int             `json:"rows_seen"`
	Written    int             `json:"rows_written"`
	Skipped    int             `json:"rows_skipped"`
	DurationMS int64           `json:"duration_ms"`
}

// ErrorEntryDTO is one invalid row.
type ErrorEntryDTO struct {
	Line   int      `json:"line"`
	Reason string   `json:"reason"`
	Row    []string `json:"row"`
}

type healthResponse struct {
	Status      string             `json:"status"`
	Store       string             `json:"store"`
	Conversions core.LimiterStatus `json:"conversions"`
}

// handleHealth reports liveness, store reachability and slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Store:       "disabled",
		Conversions: s.limiter.Status(),
	}

	if s.store != nil {
		resp.Store = "ok"
		if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
			if err := p.Ping(r.Context()); err != nil {
				logging.FromContext(r.Context()).Warn("health: store unreachable", "error", err)
				resp.Store = "unavailable"
			}
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleConvert converts one uploaded document.
// The CSV artifact is returned as the body unless ?format=json is given.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, r, err, status)
		return
	}

	if !s.limiter.TryAcquire() {
		logging.FromContext(r.Context()).Debug("waiting for conversion slot", "active", s.limiter.Active())
		if err := s.limiter.Acquire(r.Context()); err != nil {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(s.cfg.SlotWait.Seconds()))))
			respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
	}
	defer s.limiter.Release()

	asJSON := strings.EqualFold(r.URL.Query().Get("format"), "json")

	ctx := WithRequestMetadata(r.Context(), r)
	ctx = core.WithDocumentID(ctx, uuid.NewString())

	conv, err := s.convert(ctx, name, data, asJSON)
	if err != nil {
		respondError(w, r.WithContext(ctx), err, conversionStatus(err))
		return
	}
	res := conv.result

	logging.WithFields(ctx, "source", name).Info("document converted",
		"written", res.Written,
		"invalid", res.Invalid(),
		"stored", conv.stored,
		"duration_ms", res.Duration.Milliseconds(),
	)

	w.Header().Set("X-Document-ID", res.DocumentID)
	w.Header().Set("X-Rows-Written", strconv.Itoa(res.Written))
	w.Header().Set("X-Rows-Invalid", strconv.Itoa(res.Invalid()))

	if asJSON {
		writeJSON(w, r, http.StatusOK, toConvertResponse(conv))
		return
	}

	w.Header().Set("Content-Type", s.output.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", core.OutputName(name, s.output)))
	w.WriteHeader(http.StatusOK)
	if _, err := conv.csv.WriteTo(w); err != nil {
		logging.FromContext(ctx).Error("write csv response", "error", err)
	}
}

// readUpload returns the base name and contents of the multipart "file".
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			return "", nil, errFileTooLarge
		}
		return "", nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			return "", nil, errFileTooLarge
		}
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errEmptyFile
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload" + s.extractor.Extension()
	}
	return name, data, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

type conversion struct {
	result  *core.DocumentResult
	csv     bytes.Buffer
	records []core.Record
	stored  bool
}

// convert extracts, validates and transforms one document, writing the CSV
// artifact and, when a store is configured, persisting the records.
func (s *Server) convert(ctx context.Context, name string, data []byte, collect bool) (*conversion, error) {
	rows, err := s.extractor.Rows(ctx, data)
	if err != nil {
		return nil, err
	}

	c := &conversion{}
	csvw, err := core.NewCSVWriter(&c.csv, s.output)
	if err != nil {
		return nil, err
	}

	writers := []core.RecordWriter{csvw}
	if collect {
		writers = append(writers, core.RecordWriterFunc(func(rec core.Record) error {
			c.records = append(c.records, rec)
			return nil
		}))
	}

	hash := core.ContentHash(data)
	tx, err := s.beginDocument(ctx, name, hash)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		writers = append(writers, tx)
	}

	res, err := core.ProcessDocument(ctx, name, rows, core.MultiRecordWriter(writers...))
	if err == nil {
		err = csvw.Close()
	}
	if err == nil && tx != nil {
		res.ContentHash = hash
		err = tx.Commit(ctx, res)
	}
	if err != nil {
		if tx != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logging.FromContext(ctx).Warn("rollback failed", "error", rbErr)
			}
		}
		return nil, err
	}

	res.ContentHash = hash
	c.result = res
	c.stored = tx != nil
	return c, nil
}

// beginDocument opens a store transaction for a new document. It returns
// a nil transaction when no store is configured or the content is stored.
func (s *Server) beginDocument(ctx context.Context, name, hash string) (core.DocumentTx, error) {
	if s.store == nil {
		return nil, nil
	}

	seen, err := s.store.SeenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if seen {
		logging.FromContext(ctx).Info("document already stored, not persisting", "content_hash", hash)
		return nil, nil
	}

	tx, err := s.store.BeginDocument(ctx, core.DocumentIDFromContext(ctx), name, hash)
	if errors.Is(err, core.ErrDuplicateDocument) {
		logging.FromContext(ctx).Info("document stored concurrently, not persisting", "content_hash", hash)
		return nil, nil
	}
	return tx, err
}

// conversionStatus picks the HTTP status for a failed conversion.
func conversionStatus(err error) int {
	switch {
	case errors.Is(err, extract.ErrMalformed), errors.Is(err, extract.ErrNoPages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toConvertResponse(c *conversion) ConvertResponse {
	res := c.result
	resp := ConvertResponse{
		DocumentID: res.DocumentID,
		Source:     res.Source,
		Stored:     c.stored,
		Header:     core.Header[:],
		Records:    make([][]string, 0, len(c.records)),
		Errors:     make([]ErrorEntryDTO, 0, len(res.Errors)),
		Trail:      res.Trail(),
		RowsSeen:   res.RowsSeen,
		Written:    res.Written,
		Skipped:    res.Skipped,
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, rec := range c.records {
		resp.Records = append(resp.Records, rec.Strings())
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, ErrorEntryDTO{Line: e.Line, Reason: e.Reason, Row: e.Row})
	}
	return resp
}
