// Package core provides the row-validation pipeline for voter register extraction.
//
// # Error Codes Reference
//
// Technical errors are mapped to user-facing messages with a code that
// operators can grep for in the logs.
//
// # PDF Errors (PDF001-PDF099)
//
//	PDF001 - Not a PDF: the upload could not be parsed as a PDF
//	         Patterns: "malformed pdf", "not a pdf"
//	PDF002 - No pages left after trimming the cover and trailing pages
//	         Patterns: "no pages"
//	PDF003 - Encrypted PDF
//	         Patterns: "encrypted"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Wrong cell count
//	         Patterns: "invalid row count"
//	ROW002 - Record built from an unclassified row
//	         Patterns: "does not have 8 fields"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Upload over the size limit      ("file too large")
//	FILE002 - No file in the form             ("no file provided")
//	FILE003 - Zero-byte upload                ("empty file")
//	FILE004 - Unknown output compression      ("unknown compression")
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Document already stored     ("already stored", "duplicate key")
//	DB002 - Database unreachable        ("connection refused")
//	DB003 - Store not configured        ("store not configured")
//	DB004 - Record not found            ("not found")
//
// # Document Errors (DOC001-DOC099)
//
//	DOC001 - All conversion slots busy  ("too many documents")
//	DOC002 - Conversion cancelled       ("context canceled")
//	DOC003 - Conversion timed out       ("deadline exceeded")
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests         ("rate limit")
package core

import (
	"fmt"
	"strings"
)

// UserMessage is the user-facing side of a technical error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is searched in order; put specific patterns first.
var errorPatterns = []errorPattern{
	{
		pattern: "malformed pdf",
		msg: UserMessage{
			Message: "The file could not be read as a PDF",
			Action:  "Upload the original register PDF, not a scan or image",
			Code:    "PDF001",
		},
	},
	{
		pattern: "not a pdf",
		msg: UserMessage{
			Message: "The file could not be read as a PDF",
			Action:  "Upload the original register PDF, not a scan or image",
			Code:    "PDF001",
		},
	},
	{
		pattern: "no pages",
		msg: UserMessage{
			Message: "The document has no register pages",
			Action:  "Check that the PDF is a complete voter list",
			Code:    "PDF002",
		},
	},
	{
		pattern: "encrypted",
		msg: UserMessage{
			Message: "The PDF is encrypted",
			Action:  "Remove the password protection and try again",
			Code:    "PDF003",
		},
	},
	{
		pattern: "invalid row count",
		msg: UserMessage{
			Message: "A table row did not have 8 columns",
			Action:  "Review the extraction report for the affected rows",
			Code:    "ROW001",
		},
	},
	{
		pattern: "does not have 8 fields",
		msg: UserMessage{
			Message: "A row could not be converted to a record",
			Action:  "Please report this document to support",
			Code:    "ROW002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the document or convert it with the command-line tool",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a PDF file to convert",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a PDF with register pages",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unknown compression",
		msg: UserMessage{
			Message: "Unsupported output format",
			Action:  "Use compression none or gzip",
			Code:    "FILE004",
		},
	},
	{
		pattern: "already stored",
		msg: UserMessage{
			Message: "This document was already stored",
			Action:  "Look it up in the document list instead of converting again",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "This document was already stored",
			Action:  "Look it up in the document list instead of converting again",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "store not configured",
		msg: UserMessage{
			Message: "Document history is not enabled on this server",
			Action:  "Set DATABASE_URL to enable document history",
			Code:    "DB003",
		},
	},
	{
		pattern: "too many documents",
		msg: UserMessage{
			Message: "The server is busy converting other documents",
			Action:  "Please wait a moment and try again",
			Code:    "DOC001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The conversion was cancelled",
			Action:  "Please try again",
			Code:    "DOC002",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "The conversion timed out",
			Action:  "Try a smaller document or use the command-line tool",
			Code:    "DOC003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "The requested record was not found",
			Action:  "Check the document ID",
			Code:    "DB004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message by
// case-insensitive pattern match. Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError keeps the technical error for logs alongside the user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; it returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
