package extraction

import (
	"strings"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/pkg/docintel"
)

// ParseInvoice maps a raw extraction result into a canonical ParsedInvoice,
// running unit inference on every line item. Missing fields default to
// their zero value; only a result with no analyzable document at all is
// rejected (kind malformed_extraction). Header completeness is the
// validator's job, not ours.
func ParseInvoice(result *docintel.AnalyzeResult) (*model.ParsedInvoice, error) {
	if result == nil || len(result.Documents) == 0 {
		return nil, model.NewIngestError(model.ErrMalformedExtraction, "no document content in analysis result")
	}

	fields := result.Documents[0].Fields

	var items []model.ParsedItem
	for _, raw := range fields["Items"].Values {
		items = append(items, parseItem(raw))
	}

	return &model.ParsedInvoice{
		InvoiceNumber: stringValue(fields["InvoiceId"]),
		Date:          stringValue(fields["InvoiceDate"]),
		Vendor: model.Vendor{
			Name:    stringValue(fields["VendorName"]),
			Address: addressValue(fields["VendorAddress"]),
		},
		PurchaseOrder: stringValue(fields["PurchaseOrder"]),
		Items:         items,
		Subtotal:      amountValue(fields["SubTotal"]),
	}, nil
}

func parseItem(raw docintel.Field) model.ParsedItem {
	props := raw.Properties

	description := strings.TrimSpace(stringValue(props["Description"]))
	caseQuantity := numberValue(props["Quantity"])
	casePrice := amountValue(props["UnitPrice"])
	amount := amountValue(props["Amount"])

	item := model.ParsedItem{
		Description:  description,
		ProductCode:  stringValue(props["ProductCode"]),
		CaseQuantity: caseQuantity,
		Unit:         model.UnitCase,
		CasePrice:    casePrice,
		Amount:       amount,
	}

	if info, ok := ExtractUnitInfo(description, caseQuantity, amount); ok {
		item.Unit = info.Unit
		item.UnitsPerCase = info.UnitsPerCase
		item.TotalUnits = info.TotalUnits
		item.PricePerUnit = info.PricePerUnit
	}

	return item
}
