package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIngestError_Error(t *testing.T) {
	err := NewIngestError(ErrEmptyInvoice, "invoice must contain at least one item")
	assert.Equal(t, "empty_invoice: invoice must contain at least one item", err.Error())

	itemErr := NewItemError(ErrInvalidLineItem, "12 OZ BAG", "invalid case quantity %v", -1.0)
	assert.Equal(t, "invalid_line_item: invalid case quantity -1 (item: 12 OZ BAG)", itemErr.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrDuplicateInvoiceNumber, KindOf(NewIngestError(ErrDuplicateInvoiceNumber, "dup")))
	assert.Equal(t, ErrorKind(""), KindOf(eris.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))

	// The kind survives wrapping.
	wrapped := eris.Wrap(NewIngestError(ErrResolutionFailed, "lookup"), "ingest: resolve")
	assert.Equal(t, ErrResolutionFailed, KindOf(wrapped))
}

func TestIsKind(t *testing.T) {
	err := NewItemError(ErrInvalidLineItem, "X", "bad")
	assert.True(t, IsKind(err, ErrInvalidLineItem))
	assert.False(t, IsKind(err, ErrEmptyInvoice))
}
