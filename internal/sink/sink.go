// Package sink stores conversion artifacts (CSV files and the extraction
// report) on the local filesystem or in an S3-compatible bucket.
package sink

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	ErrInvalidConfig = errors.New("invalid sink configuration")
	ErrInvalidKey    = errors.New("invalid artifact key") // Empty, absolute or escaping the root

	ErrFailedToWrite      = errors.New("failed to write artifact")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// Sink receives named artifacts. Keys use forward slashes.
// r may be a stream; if reading it fails, Put returns an error and no
// artifact is left under key.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader) error
}

// cleanKey normalizes key and rejects ones that would leave the sink root.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// ContentType picks the MIME type for an artifact from its key.
func ContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".csv"):
		return "text/csv; charset=utf-8"
	case strings.HasSuffix(key, ".log"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
