package web

// errors.go renders every failure the same way: the technical error is
// logged with the request ID, the client gets core.MapError's message.

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/JonMunkholm/VotersList/internal/core"
	"github.com/JonMunkholm/VotersList/internal/logging"
)

var (
	errRateLimited        = errors.New("rate limit exceeded")
	errNoFile             = errors.New("no file provided")
	errEmptyFile          = errors.New("empty file")
	errFileTooLarge       = errors.New("file too large")
	errStoreNotConfigured = errors.New("store not configured")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	ue := core.NewUserError(err)
	msg := ue.User

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	writeJSON(w, r, status, ErrorResponse{
		Error:   ue.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v with the given status.
// Encoding errors are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
