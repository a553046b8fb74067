package sheet

import (
	"context"
	"errors"
	"fmt"
)

// Ingestion and export failures.
var (
	ErrNoFile          = errors.New("no file provided")
	ErrInvalidFileType = errors.New("invalid file type: expected .xls or .xlsx")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyWorkbook   = errors.New("workbook is empty")
	ErrHeaderOnly      = fmt.Errorf("%w: header row without data rows", ErrEmptyWorkbook)
	ErrDecode          = errors.New("spreadsheet could not be decoded")

	ErrUnknownTool       = errors.New("unknown tool")
	ErrUnsupportedExport = errors.New("export format not supported by tool")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorEntry struct {
	target error
	msg    UserMessage
}

// errorCatalog maps sentinel errors to user messages. errors.Is decides the
// match and the first hit wins, so ErrHeaderOnly sits before
// ErrEmptyWorkbook.
var errorCatalog = []errorEntry{
	// File errors (FILE001-FILE099)
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Remove unused sheets or rows and try again",
		Code:    "FILE001",
	}},
	{ErrInvalidFileType, UserMessage{
		Message: "Please upload a valid Excel file (.xls or .xlsx)",
		Action:  "Save the workbook as .xlsx and upload it again",
		Code:    "FILE002",
	}},
	{ErrNoFile, UserMessage{
		Message: "No file was selected",
		Action:  "Please select an Excel file to upload",
		Code:    "FILE003",
	}},
	{ErrHeaderOnly, UserMessage{
		Message: "The Excel file has a header row but no data rows",
		Action:  "Add at least one row below the header",
		Code:    "FILE004",
	}},
	{ErrEmptyWorkbook, UserMessage{
		Message: "The Excel file appears to be empty",
		Action:  "Make sure the first sheet has a header row and data",
		Code:    "FILE005",
	}},
	{ErrDecode, UserMessage{
		Message: "The file could not be read as a spreadsheet",
		Action:  "Open it in Excel, save a fresh copy and try again",
		Code:    "FILE006",
	}},

	// Conversion errors (UPL001-UPL099)
	{ErrTooManyConversions, UserMessage{
		Message: "System is busy processing other files",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL003",
	}},

	// Tool errors (TOOL001-TOOL099)
	{ErrUnknownTool, UserMessage{
		Message: "Unknown tool",
		Action:  "Pick one of the tools listed on the home page",
		Code:    "TOOL001",
	}},
	{ErrUnsupportedExport, UserMessage{
		Message: "This tool does not offer that download format",
		Action:  "Use the converter for the format you need",
		Code:    "TOOL002",
	}},
}

// defaultMessage is returned when nothing in the catalog matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An error occurred while processing the file",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an ingestion or export error to a user-friendly message.
// Unknown errors map to the generic ERR000 message.
//
//	_, err := Ingest(ctx, up, opts)
//	msg := MapError(err)
//	// msg.Code == "FILE005" for an empty workbook
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, e := range errorCatalog {
		if errors.Is(err, e.target) {
			return e.msg
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

// IsUserFacing reports whether err maps to a specific catalog entry.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs the technical error (for logs) with its user message.
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

// NewUserError maps err into a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
