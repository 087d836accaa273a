package core

// error_messages.go maps technical errors to user-facing messages with
// codes that can be quoted to support.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source not found: A source file does not exist
//	         Action: Check the file path and try again
//	         Patterns: "no such file", "cannot find the file"
//
//	SRC002 - Permission denied: A source file could not be opened
//	         Action: Check the file permissions
//	         Patterns: "permission denied"
//
//	SRC003 - Malformed row: A row has more fields than its header
//	         Action: Check the delimiter and remove stray separators
//	         Patterns: "more fields than the header"
//
//	SRC004 - Unreadable source: A source file could not be read
//	         Action: Check that the file is a delimited text file or a spreadsheet
//	         Patterns: "unreadable source"
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Ambiguous header: Several headers match one column
//	         Action: Rename the extra headers or use exact matching
//	         Patterns: "ambiguous"
//
//	SCH002 - Schema mismatch: Source columns do not fit the target
//	         Action: Check the header names against the target columns
//	         Patterns: "schema mismatch"
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Missing columns: Selected columns are not in the sheet
//	         Action: List the sheet's columns and choose again
//	         Patterns: "missing columns"
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Unknown encoding: The encoding name is not recognised
//	         Action: Use an encoding such as utf-8 or windows-1250
//	         Patterns: "unknown encoding"
//
//	CFG002 - Invalid configuration: The merge options are not usable
//	         Action: Review the merge settings
//	         Patterns: "invalid configuration"
//
// # Merge Errors (MRG001-MRG099)
//
//	MRG001 - System busy: Too many merges are running
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent merges"
//
//	MRG002 - Request cancelled
//	         Patterns: "context canceled"
//
//	MRG003 - Request timeout
//	         Patterns: "context deadline exceeded"
//
// # Other
//
//	RATE001 - Too many requests ("rate limit")
//	HIS001  - History store unavailable ("connection refused")
//	ERR000  - Fallback when nothing matches; check the logs
//
// Errors of type *Error are classified by Kind and wrapped cause. Patterns
// apply to every other error and are matched case-insensitively with
// strings.Contains. The first match wins, so specific patterns come before
// general ones.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/sheetmerge/internal/textenc"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Source errors
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "A source file does not exist",
			Action:  "Check the file path and try again",
			Code:    "SRC001",
		},
	},
	{
		pattern: "cannot find the file",
		msg: UserMessage{
			Message: "A source file does not exist",
			Action:  "Check the file path and try again",
			Code:    "SRC001",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "A source file could not be opened",
			Action:  "Check the file permissions",
			Code:    "SRC002",
		},
	},
	{
		pattern: "more fields than the header",
		msg: UserMessage{
			Message: "A row has more fields than its header",
			Action:  "Check the delimiter and remove stray separators",
			Code:    "SRC003",
		},
	},
	{
		pattern: "unreadable source",
		msg: UserMessage{
			Message: "A source file could not be read",
			Action:  "Check that the file is a delimited text file or a spreadsheet",
			Code:    "SRC004",
		},
	},

	// Schema errors
	{
		pattern: "ambiguous",
		msg: UserMessage{
			Message: "Several headers match the same column",
			Action:  "Rename the extra headers or use exact matching",
			Code:    "SCH001",
		},
	},
	{
		pattern: "schema mismatch",
		msg: UserMessage{
			Message: "The source columns do not fit the target",
			Action:  "Check the header names against the target columns",
			Code:    "SCH002",
		},
	},

	// Column errors
	{
		pattern: "missing columns",
		msg: UserMessage{
			Message: "Selected columns are not in the sheet",
			Action:  "List the sheet's columns and choose again",
			Code:    "COL001",
		},
	},

	// Configuration errors
	{
		pattern: "unknown encoding",
		msg: UserMessage{
			Message: "The encoding name is not recognised",
			Action:  "Use an encoding such as utf-8 or windows-1250",
			Code:    "CFG001",
		},
	},
	{
		pattern: "invalid configuration",
		msg: UserMessage{
			Message: "The merge settings are not usable",
			Action:  "Review the merge settings",
			Code:    "CFG002",
		},
	},

	// Merge errors
	{
		pattern: "too many concurrent merges",
		msg: UserMessage{
			Message: "System is busy processing other merges",
			Action:  "Please wait a moment and try again",
			Code:    "MRG001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "MRG002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try fewer source files or try again later",
			Code:    "MRG003",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},

	// History store
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the run history store",
			Action:  "Please try again in a few moments",
			Code:    "HIS001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Cancellation and *Error values are classified by their kind and wrapped
// cause. Their rendered text carries user paths and column names, so it is
// never searched. Any other error is matched against the known patterns
// (case-insensitive), falling back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if code := structuredCode(err); code != "" {
		return messageFor(code)
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// structuredCode returns the support code implied by err's chain, or "".
func structuredCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "MRG002"
	case errors.Is(err, context.DeadlineExceeded):
		return "MRG003"
	}

	var e *Error
	if !errors.As(err, &e) {
		return ""
	}

	switch e.Kind {
	case KindUnreadableSource:
		switch {
		case errors.Is(e.Err, fs.ErrNotExist):
			return "SRC001"
		case errors.Is(e.Err, fs.ErrPermission):
			return "SRC002"
		case errors.Is(e.Err, ErrRowTooWide):
			return "SRC003"
		}
		return "SRC004"
	case KindSchemaMismatch:
		if errors.Is(e.Err, ErrAmbiguousHeader) {
			return "SCH001"
		}
		return "SCH002"
	case KindMissingColumns:
		return "COL001"
	case KindInvalidConfiguration:
		if errors.Is(e.Err, textenc.ErrUnknownEncoding) {
			return "CFG001"
		}
		return "CFG002"
	}
	return ""
}

func messageFor(code string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a specific pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
