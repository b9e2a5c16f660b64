package validate

import (
	"context"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/model"
)

type finderStub struct {
	existing *model.Invoice
	err      error
}

func (f *finderStub) FindInvoiceByNumber(ctx context.Context, restaurantID, invoiceNumber string) (*model.Invoice, error) {
	return f.existing, f.err
}

func validInvoice() *model.ParsedInvoice {
	return &model.ParsedInvoice{
		InvoiceNumber: "INV-1",
		Items: []model.ParsedItem{{
			Description:  "12 OZ BAG",
			CaseQuantity: 5,
			CasePrice:    10,
			Amount:       50,
		}},
	}
}

func TestInvoice_Valid(t *testing.T) {
	err := Invoice(context.Background(), &finderStub{}, validInvoice(), "rest-1")
	assert.NoError(t, err)
}

func TestInvoice_MissingNumber(t *testing.T) {
	inv := validInvoice()
	inv.InvoiceNumber = ""

	err := Invoice(context.Background(), &finderStub{}, inv, "rest-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrMissingInvoiceNumber, model.KindOf(err))
}

func TestInvoice_Duplicate(t *testing.T) {
	finder := &finderStub{existing: &model.Invoice{ID: "other"}}

	err := Invoice(context.Background(), finder, validInvoice(), "rest-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrDuplicateInvoiceNumber, model.KindOf(err))
}

func TestInvoice_LookupFailure(t *testing.T) {
	finder := &finderStub{err: eris.New("connection refused")}

	err := Invoice(context.Background(), finder, validInvoice(), "rest-1")
	require.Error(t, err)
	// Infrastructure failures are not classified; the caller retries or
	// reports them as-is.
	assert.Equal(t, model.ErrorKind(""), model.KindOf(err))
}

func TestInvoice_EmptyItems(t *testing.T) {
	inv := validInvoice()
	inv.Items = nil

	err := Invoice(context.Background(), &finderStub{}, inv, "rest-1")
	require.Error(t, err)
	assert.Equal(t, model.ErrEmptyInvoice, model.KindOf(err))
}

func TestInvoice_ItemChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ParsedItem)
	}{
		{"missing description", func(it *model.ParsedItem) { it.Description = "" }},
		{"negative quantity", func(it *model.ParsedItem) { it.CaseQuantity = -1 }},
		{"nan quantity", func(it *model.ParsedItem) { it.CaseQuantity = math.NaN() }},
		{"negative price", func(it *model.ParsedItem) { it.CasePrice = -0.01 }},
		{"infinite price", func(it *model.ParsedItem) { it.CasePrice = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(&inv.Items[0])

			err := Invoice(context.Background(), &finderStub{}, inv, "rest-1")
			require.Error(t, err)
			assert.Equal(t, model.ErrInvalidLineItem, model.KindOf(err))
		})
	}
}

func TestInvoice_ZeroValuesAreValid(t *testing.T) {
	inv := validInvoice()
	inv.Items[0].CaseQuantity = 0
	inv.Items[0].CasePrice = 0

	err := Invoice(context.Background(), &finderStub{}, inv, "rest-1")
	assert.NoError(t, err)
}
