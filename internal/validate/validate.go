// Package validate enforces the business invariants a parsed invoice must
// satisfy before it is allowed to touch persistent state.
package validate

import (
	"context"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/model"
)

// InvoiceFinder is the single store lookup validation needs.
type InvoiceFinder interface {
	FindInvoiceByNumber(ctx context.Context, restaurantID, invoiceNumber string) (*model.Invoice, error)
}

// nonNegativeNumberRe matches unsigned decimal quantities and prices.
// Negative values, NaN and infinities all fail it.
var nonNegativeNumberRe = regexp.MustCompile(`^\d*\.?\d+$`)

// Invoice checks a parsed invoice against the current persisted state.
// Checks run in order and short-circuit on the first failure. The duplicate
// check is advisory: two concurrent ingestions can both pass it, and the
// store's unique constraint is the authoritative guard at commit time.
// Validation is read-only; it never mutates the invoice.
func Invoice(ctx context.Context, finder InvoiceFinder, inv *model.ParsedInvoice, restaurantID string) error {
	if inv.InvoiceNumber == "" {
		return model.NewIngestError(model.ErrMissingInvoiceNumber, "invoice number is required")
	}

	existing, err := finder.FindInvoiceByNumber(ctx, restaurantID, inv.InvoiceNumber)
	if err != nil {
		return eris.Wrap(err, "validate: duplicate lookup")
	}
	if existing != nil {
		return model.NewIngestError(model.ErrDuplicateInvoiceNumber, "invoice number %s already exists", inv.InvoiceNumber)
	}

	if len(inv.Items) == 0 {
		return model.NewIngestError(model.ErrEmptyInvoice, "invoice must contain at least one item")
	}

	for _, item := range inv.Items {
		if item.Description == "" {
			return model.NewItemError(model.ErrInvalidLineItem, item.Description, "item description is required")
		}
		if !validNumber(item.CaseQuantity) {
			return model.NewItemError(model.ErrInvalidLineItem, item.Description, "invalid case quantity %v", item.CaseQuantity)
		}
		if !validNumber(item.CasePrice) {
			return model.NewItemError(model.ErrInvalidLineItem, item.Description, "invalid case price %v", item.CasePrice)
		}
	}

	return nil
}

func validNumber(f float64) bool {
	return nonNegativeNumberRe.MatchString(strconv.FormatFloat(f, 'f', -1, 64))
}
