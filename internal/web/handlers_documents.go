package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/VotersList/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	defaultRecordLimit = 1000
	maxRecordLimit     = 10000
)

// handleListDocuments returns the most recent stored conversions.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errStoreNotConfigured, http.StatusNotFound)
		return
	}

	limit := min(parseIntParam(r, "limit", defaultListLimit), maxListLimit)
	docs, err := s.store.ListDocuments(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"documents": docs})
}

// handleGetDocument returns one stored conversion with its trail.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errStoreNotConfigured, http.StatusNotFound)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, documentStatus(err))
		return
	}

	writeJSON(w, r, http.StatusOK, doc)
}

// handleDocumentRecords returns a stored conversion's records in line order.
func (s *Server) handleDocumentRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errStoreNotConfigured, http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		respondError(w, r, err, documentStatus(err))
		return
	}

	limit := min(parseIntParam(r, "limit", defaultRecordLimit), maxRecordLimit)
	recs, err := s.store.Records(r.Context(), id, limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, rec.Strings())
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"document_id": id,
		"records":     rows,
	})
}

func documentStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
