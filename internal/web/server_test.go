package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/JonMunkholm/VotersList/internal/config"
	"github.com/JonMunkholm/VotersList/internal/core"
	"github.com/JonMunkholm/VotersList/internal/extract"
	"github.com/JonMunkholm/VotersList/internal/store"
)

// lineExtractor reads "|"-separated lines after a header line.
// Content starting with "bad" is rejected as malformed.
type lineExtractor struct{}

func (lineExtractor) Extension() string { return ".pdf" }

func (lineExtractor) Rows(_ context.Context, data []byte) (iter.Seq2[core.RawRow, error], error) {
	text := string(data)
	if strings.HasPrefix(text, "bad") {
		return nil, fmt.Errorf("%w: missing header", extract.ErrMalformed)
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var rows []core.RawRow
	for _, l := range lines[1:] {
		rows = append(rows, core.RawRow(strings.Split(l, "|")))
	}
	return core.SliceRows(rows), nil
}

const goodDoc = "#|Island|House|Name|Sex|ID|Addr|NameDV\n" +
	"1|Male'|Test House|Ahmed|M|A123456|bnda|AHMED\n" +
	"garbage\n" +
	"2|Male'|Blue House|Aisha|F\n"

type memTx struct {
	s       *memStore
	id      string
	source  string
	hash    string
	records []core.Record
}

func (t *memTx) WriteRecord(rec core.Record) error {
	t.records = append(t.records, rec)
	return nil
}

func (t *memTx) Commit(_ context.Context, res *core.DocumentResult) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.hashes[t.hash] = true
	t.s.docs[t.id] = store.Document{
		ID: t.id, Source: t.source, ContentHash: t.hash,
		Written: res.Written, Invalid: res.Invalid(), Trail: res.Trail(),
	}
	t.s.records[t.id] = t.records
	return nil
}

func (t *memTx) Rollback(context.Context) error { return nil }

type memStore struct {
	mu      sync.Mutex
	raced   bool // BeginDocument reports the content as stored elsewhere
	hashes  map[string]bool
	docs    map[string]store.Document
	records map[string][]core.Record
}

func newMemStore() *memStore {
	return &memStore{
		hashes:  map[string]bool{},
		docs:    map[string]store.Document{},
		records: map[string][]core.Record{},
	}
}

func (s *memStore) SeenHash(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[hash], nil
}

func (s *memStore) BeginDocument(_ context.Context, id, source, hash string) (core.DocumentTx, error) {
	if s.raced {
		return nil, fmt.Errorf("insert document %s: %w", id, core.ErrDuplicateDocument)
	}
	return &memTx{s: s, id: id, source: source, hash: hash}, nil
}

func (s *memStore) ListDocuments(_ context.Context, limit int) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Document
	for _, d := range s.docs {
		if len(out) == limit {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) GetDocument(_ context.Context, id string) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return &d, nil
}

func (s *memStore) Records(_ context.Context, id string, limit int) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[id]
	return recs[:min(limit, len(recs))], nil
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Port:                   8080,
		MaxUploadSize:          1 << 20,
		MaxConcurrentDocuments: 2,
		SlotWait:               20 * time.Millisecond,
		RequestTimeout:         5 * time.Second,
	}
}

func newTestServer(t *testing.T, cfg config.ServerConfig, st DocumentStore) *Server {
	t.Helper()
	s := NewServer(Options{Config: cfg, Extractor: lineExtractor{}, Store: st})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func uploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Store != "disabled" || resp.Conversions.Capacity != 2 {
		t.Errorf("health = %+v", resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestConvert_CSV(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := serve(s, uploadRequest(t, "/api/convert", "list.pdf", goodDoc))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `"list.pdf.csv"`) {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Header().Get("X-Document-ID") == "" {
		t.Error("X-Document-ID missing")
	}
	if rec.Header().Get("X-Rows-Written") != "1" || rec.Header().Get("X-Rows-Invalid") != "1" {
		t.Errorf("row headers = %s written, %s invalid",
			rec.Header().Get("X-Rows-Written"), rec.Header().Get("X-Rows-Invalid"))
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "#,Island,House Name,Name,Sex,National ID,Address_DV,Name_DV" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestConvert_JSON(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	rec := serve(s, uploadRequest(t, "/api/convert?format=json", "list.pdf", goodDoc))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ConvertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	if resp.DocumentID != rec.Header().Get("X-Document-ID") {
		t.Errorf("document_id %q does not match header", resp.DocumentID)
	}
	if len(resp.Records) != 1 || resp.Records[0][core.FieldHouseName] != "Test House" {
		t.Errorf("records = %q", resp.Records)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Line != 3 {
		t.Errorf("errors = %+v", resp.Errors)
	}
	wantTrail := `list.pdf::Invalid row count encountered::["2" "Male " "Blue House" "Aisha" "F"]`
	if resp.Trail != wantTrail {
		t.Errorf("trail = %q, want %q", resp.Trail, wantTrail)
	}
	if resp.Skipped != 1 || resp.RowsSeen != 3 || resp.Stored {
		t.Errorf("counts = %+v", resp)
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name: "no file field",
			req: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				_ = mw.WriteField("other", "x")
				_ = mw.Close()
				r := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
				r.Header.Set("Content-Type", mw.FormDataContentType())
				return r
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE002",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader("x"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE002",
		},
		{
			name:     "empty file",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/convert", "e.pdf", "") },
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE003",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/convert", "big.pdf", strings.Repeat("x", 2<<20))
			},
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
		{
			name:     "malformed",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "/api/convert", "b.pdf", "bad") },
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "PDF001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), nil)
			rec := serve(s, tt.req(t))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decodeError(t, rec).Code; got != tt.wantErr {
				t.Errorf("code = %s, want %s", got, tt.wantErr)
			}
		})
	}
}

func TestConvert_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentDocuments = 1
	s := newTestServer(t, cfg, nil)

	if !s.limiter.TryAcquire() {
		t.Fatal("could not take the only slot")
	}
	defer s.limiter.Release()

	rec := serve(s, uploadRequest(t, "/api/convert", "list.pdf", goodDoc))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeError(t, rec).Code != "DOC001" {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestConvert_PersistsOnce(t *testing.T) {
	st := newMemStore()
	s := newTestServer(t, testConfig(), st)

	first := serve(s, uploadRequest(t, "/api/convert?format=json", "list.pdf", goodDoc))
	second := serve(s, uploadRequest(t, "/api/convert?format=json", "again.pdf", goodDoc))

	var a, b ConvertResponse
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if !a.Stored || b.Stored {
		t.Errorf("stored = %v then %v, want true then false", a.Stored, b.Stored)
	}
	if len(st.docs) != 1 || len(st.records[a.DocumentID]) != 1 {
		t.Errorf("store has %d docs, %d records", len(st.docs), len(st.records[a.DocumentID]))
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/documents/"+a.DocumentID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var doc store.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Source != "list.pdf" || doc.Trail != a.Trail {
		t.Errorf("document = %+v", doc)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/documents/"+a.DocumentID+"/records?limit=5", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Test House") {
		t.Errorf("records status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), a.DocumentID) {
		t.Errorf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestConvert_StoredConcurrently(t *testing.T) {
	st := newMemStore()
	st.raced = true
	s := newTestServer(t, testConfig(), st)

	rec := serve(s, uploadRequest(t, "/api/convert?format=json", "list.pdf", goodDoc))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ConvertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stored || resp.Written != 1 {
		t.Errorf("stored = %v, written = %d", resp.Stored, resp.Written)
	}
	if len(st.docs) != 0 {
		t.Errorf("store has %d docs, want 0", len(st.docs))
	}
}

func TestRespondError_KeepsTechnicalDetailOutOfBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/convert", nil)
	rec := httptest.NewRecorder()
	respondError(rec, req, fmt.Errorf("dial tcp 10.0.0.7:5432: %w", errors.New("connection refused")), http.StatusInternalServerError)

	resp := decodeError(t, rec)
	if resp.Code != "DB002" || resp.Error != resp.Message {
		t.Errorf("response = %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.7") {
		t.Errorf("body leaks the technical error: %s", rec.Body.String())
	}
}

func TestDocuments_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), newMemStore())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/documents/6f1c2e0a-0000-4000-8000-000000000000", nil))
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != "DB004" {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestDocuments_NoStore(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	for _, path := range []string{"/api/documents", "/api/documents/x", "/api/documents/x/records"} {
		rec := serve(s, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d", path, rec.Code)
			continue
		}
		if got := decodeError(t, rec).Code; got != "DB003" {
			t.Errorf("%s code = %s, want DB003", path, got)
		}
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 2
	s := newTestServer(t, cfg, nil)

	for i := range 2 {
		if rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if decodeError(t, rec).Code != "RATE001" {
		t.Errorf("body = %s", rec.Body.String())
	}

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.RemoteAddr = "198.51.100.7:5555"
	if rec := serve(s, other); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d", rec.Code)
	}
}

func TestAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKeys = []string{"k1", "k2"}
	s := newTestServer(t, cfg, nil)

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("health should stay open, got %d", rec.Code)
	}

	req := uploadRequest(t, "/api/convert", "list.pdf", goodDoc)
	if rec := serve(s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d", rec.Code)
	}

	req = uploadRequest(t, "/api/convert", "list.pdf", goodDoc)
	req.Header.Set("X-API-Key", "k2")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("valid key status = %d", rec.Code)
	}
}

func TestConversionStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("open: %w", extract.ErrMalformed), http.StatusUnprocessableEntity},
		{extract.ErrNoPages, http.StatusUnprocessableEntity},
		{fmt.Errorf("row 9: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := conversionStatus(tt.err); got != tt.want {
			t.Errorf("conversionStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
