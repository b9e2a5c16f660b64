package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-distinguishable classification of an ingestion
// failure. Callers branch on the kind; the message is for humans.
type ErrorKind string

const (
	ErrMalformedExtraction    ErrorKind = "malformed_extraction"
	ErrMissingInvoiceNumber   ErrorKind = "missing_invoice_number"
	ErrDuplicateInvoiceNumber ErrorKind = "duplicate_invoice_number"
	ErrEmptyInvoice           ErrorKind = "empty_invoice"
	ErrInvalidLineItem        ErrorKind = "invalid_line_item"
	ErrResolutionFailed       ErrorKind = "resolution_failed"
	ErrPersistenceConflict    ErrorKind = "persistence_conflict"
)

// IngestError is a structured ingestion failure. Item names the offending
// line-item description when the failure is item-scoped.
type IngestError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Item    string    `json:"item,omitempty"`
}

func (e *IngestError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s (item: %s)", e.Kind, e.Message, e.Item)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewIngestError builds an IngestError with a formatted message.
func NewIngestError(kind ErrorKind, format string, args ...any) *IngestError {
	return &IngestError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewItemError builds an item-scoped IngestError.
func NewItemError(kind ErrorKind, item string, format string, args ...any) *IngestError {
	return &IngestError{Kind: kind, Message: fmt.Sprintf(format, args...), Item: item}
}

// KindOf returns the ErrorKind of err if it is (or wraps) an IngestError,
// and "" otherwise.
func KindOf(err error) ErrorKind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) an IngestError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
